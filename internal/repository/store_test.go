package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/miner1qaz-ops/Mochi-sub000/internal/model"
	"github.com/miner1qaz-ops/Mochi-sub000/internal/repository"
	"github.com/miner1qaz-ops/Mochi-sub000/pkg/uid"
)

func openTestStore(t *testing.T) *repository.Store {
	t.Helper()
	store, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "packs.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedCatalog(t *testing.T, store *repository.Store, counts map[int64]int) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	templates := []model.CardTemplate{
		{ID: 1, Name: "Pikachu", Rarity: model.RarityCommon},
		{ID: 2, Name: "Charmander", Rarity: model.RarityUncommon},
		{ID: 3, Name: "Gyarados", Rarity: model.RarityRare},
		{ID: 4, Name: "Basic Energy", Rarity: model.RarityEnergy, Energy: true},
	}
	if err := store.ImportTemplates(ctx, templates); err != nil {
		t.Fatalf("failed to import templates: %v", err)
	}
	for templateID, n := range counts {
		if _, err := store.ProvisionCards(ctx, templateID, n, now); err != nil {
			t.Fatalf("failed to provision cards: %v", err)
		}
	}
}

func newSession(wallet string, now time.Time) *model.PackSession {
	return &model.PackSession{
		ID:         uid.New(),
		Wallet:     wallet,
		PackType:   model.BoosterPackType,
		Currency:   model.CurrencySOL,
		CallerSeed: "seed",
		Commitment: "commitment",
		Nonce:      "nonce",
		Proof:      "proof",
		Rarities:   []model.Rarity{model.RarityCommon, model.RarityUncommon},
		ExpiresAt:  now.Add(time.Hour),
	}
}

func TestCreateSessionReservesCards(t *testing.T) {
	store := openTestStore(t)
	seedCatalog(t, store, map[int64]int{1: 2, 2: 1})
	ctx := context.Background()
	now := time.Now()

	sess := newSession("wallet-a", now)
	if err := store.CreateSession(ctx, sess, []int64{1, 2}, now); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if len(sess.CardIDs) != 2 {
		t.Fatalf("reserved %d cards, want 2", len(sess.CardIDs))
	}

	cards, err := store.CardsByIDs(ctx, sess.CardIDs)
	if err != nil {
		t.Fatalf("CardsByIDs failed: %v", err)
	}
	for _, c := range cards {
		if c.Status != model.CardReserved {
			t.Errorf("card %d status = %s, want reserved", c.ID, c.Status)
		}
		if c.Owner != "wallet-a" {
			t.Errorf("card %d owner = %s, want wallet-a", c.ID, c.Owner)
		}
	}

	n, err := store.AvailableCount(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("template 1 has %d available, want 1", n)
	}
}

// Reservation is all-or-nothing: a stock-out mid-call rolls back cards
// already claimed in the same call.
func TestCreateSessionRollsBackOnStockOut(t *testing.T) {
	store := openTestStore(t)
	seedCatalog(t, store, map[int64]int{1: 3}) // template 2 has zero cards
	ctx := context.Background()
	now := time.Now()

	sess := newSession("wallet-a", now)
	err := store.CreateSession(ctx, sess, []int64{1, 1, 2}, now)

	var oos *model.OutOfStockError
	if !errors.As(err, &oos) {
		t.Fatalf("CreateSession error = %v, want OutOfStockError", err)
	}
	if oos.TemplateID != 2 || oos.Slot != 2 {
		t.Errorf("out of stock at template %d slot %d, want template 2 slot 2", oos.TemplateID, oos.Slot)
	}

	n, err := store.AvailableCount(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("template 1 has %d available after rollback, want 3", n)
	}

	if _, err := store.SessionByID(ctx, sess.ID); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("session persisted despite failed reservation: %v", err)
	}
}

// The same template twice in one pack claims two distinct cards.
func TestCreateSessionDistinctCardsPerSlot(t *testing.T) {
	store := openTestStore(t)
	seedCatalog(t, store, map[int64]int{1: 2})
	ctx := context.Background()
	now := time.Now()

	sess := newSession("wallet-a", now)
	if err := store.CreateSession(ctx, sess, []int64{1, 1}, now); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if sess.CardIDs[0] == sess.CardIDs[1] {
		t.Errorf("both slots reserved card %d", sess.CardIDs[0])
	}
}

func TestOnePendingSessionPerWallet(t *testing.T) {
	store := openTestStore(t)
	seedCatalog(t, store, map[int64]int{1: 10})
	ctx := context.Background()
	now := time.Now()

	first := newSession("wallet-a", now)
	if err := store.CreateSession(ctx, first, []int64{1}, now); err != nil {
		t.Fatalf("first CreateSession failed: %v", err)
	}

	second := newSession("wallet-a", now)
	if err := store.CreateSession(ctx, second, []int64{1}, now); !errors.Is(err, model.ErrActiveSession) {
		t.Fatalf("second CreateSession error = %v, want ErrActiveSession", err)
	}

	// A different wallet is unaffected.
	other := newSession("wallet-b", now)
	if err := store.CreateSession(ctx, other, []int64{1}, now); err != nil {
		t.Fatalf("other wallet CreateSession failed: %v", err)
	}

	// An expired pending session does not block a new build.
	stale := newSession("wallet-c", now)
	stale.ExpiresAt = now.Add(-time.Minute)
	if err := store.CreateSession(ctx, stale, []int64{1}, now.Add(-2*time.Hour)); err != nil {
		t.Fatalf("stale CreateSession failed: %v", err)
	}
	fresh := newSession("wallet-c", now)
	if err := store.CreateSession(ctx, fresh, []int64{1}, now); err != nil {
		t.Fatalf("CreateSession after expired pending failed: %v", err)
	}
}

// Under concurrent builds racing for the last card of a template, exactly
// one reservation wins.
func TestConcurrentReservationOfLastCard(t *testing.T) {
	store := openTestStore(t)
	seedCatalog(t, store, map[int64]int{3: 1})
	ctx := context.Background()
	now := time.Now()

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess := newSession(uid.New(), now)
			errs[i] = store.CreateSession(ctx, sess, []int64{3}, now)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		var oos *model.OutOfStockError
		switch {
		case err == nil:
			won++
		case errors.As(err, &oos):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("%d reservations won the last card, want exactly 1", won)
	}

	n, err := store.AvailableCount(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("%d cards still available, want 0", n)
	}
}

// Two concurrent builds for the same wallet never both end pending.
func TestConcurrentBuildsSameWallet(t *testing.T) {
	store := openTestStore(t)
	seedCatalog(t, store, map[int64]int{1: 10})
	ctx := context.Background()
	now := time.Now()

	const racers = 6
	var wg sync.WaitGroup
	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess := newSession("wallet-racer", now)
			errs[i] = store.CreateSession(ctx, sess, []int64{1}, now)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, model.ErrActiveSession):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("%d builds created pending sessions for one wallet, want exactly 1", won)
	}
}

func TestFinishSessionAccept(t *testing.T) {
	store := openTestStore(t)
	seedCatalog(t, store, map[int64]int{1: 1, 2: 1})
	ctx := context.Background()
	now := time.Now()

	sess := newSession("wallet-a", now)
	if err := store.CreateSession(ctx, sess, []int64{1, 2}, now); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	done, err := store.FinishSession(ctx, sess.ID, "wallet-a", true, now)
	if err != nil {
		t.Fatalf("FinishSession failed: %v", err)
	}
	if done.State != model.SessionAccepted {
		t.Errorf("state = %s, want accepted", done.State)
	}

	cards, err := store.CardsByIDs(ctx, sess.CardIDs)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range cards {
		if c.Status != model.CardUserOwned {
			t.Errorf("card %d status = %s, want user_owned", c.ID, c.Status)
		}
		if c.Owner != "wallet-a" {
			t.Errorf("card %d owner = %s, want wallet-a", c.ID, c.Owner)
		}
	}
}

// Build then reject returns every card to the pool and a later build can
// reserve them again.
func TestFinishSessionRejectReleasesCards(t *testing.T) {
	store := openTestStore(t)
	seedCatalog(t, store, map[int64]int{1: 1})
	ctx := context.Background()
	now := time.Now()

	sess := newSession("wallet-a", now)
	if err := store.CreateSession(ctx, sess, []int64{1}, now); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	done, err := store.FinishSession(ctx, sess.ID, "wallet-a", false, now)
	if err != nil {
		t.Fatalf("FinishSession failed: %v", err)
	}
	if done.State != model.SessionRejected {
		t.Errorf("state = %s, want rejected", done.State)
	}

	n, err := store.AvailableCount(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("%d cards available after reject, want 1", n)
	}

	again := newSession("wallet-a", now)
	again.CallerSeed = "another-seed"
	if err := store.CreateSession(ctx, again, []int64{1}, now); err != nil {
		t.Fatalf("rebuild after reject failed: %v", err)
	}
}

func TestFinishSessionGuards(t *testing.T) {
	store := openTestStore(t)
	seedCatalog(t, store, map[int64]int{1: 5})
	ctx := context.Background()
	now := time.Now()

	sess := newSession("wallet-a", now)
	if err := store.CreateSession(ctx, sess, []int64{1}, now); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if _, err := store.FinishSession(ctx, "missing", "wallet-a", true, now); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("missing session error = %v, want ErrSessionNotFound", err)
	}

	if _, err := store.FinishSession(ctx, sess.ID, "wallet-b", true, now); !errors.Is(err, model.ErrWalletMismatch) {
		t.Errorf("wrong wallet error = %v, want ErrWalletMismatch", err)
	}

	// Past the deadline accept and reject both refuse, even though the
	// session was never swept.
	late := now.Add(2 * time.Hour)
	if _, err := store.FinishSession(ctx, sess.ID, "wallet-a", true, late); !errors.Is(err, model.ErrSessionExpired) {
		t.Errorf("expired accept error = %v, want ErrSessionExpired", err)
	}
	if _, err := store.FinishSession(ctx, sess.ID, "wallet-a", false, late); !errors.Is(err, model.ErrSessionExpired) {
		t.Errorf("expired reject error = %v, want ErrSessionExpired", err)
	}

	// Terminal states accept no further transitions.
	if _, err := store.FinishSession(ctx, sess.ID, "wallet-a", false, now); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	var inv *model.InvalidStateError
	_, err := store.FinishSession(ctx, sess.ID, "wallet-a", true, now)
	if !errors.As(err, &inv) {
		t.Fatalf("accept after reject error = %v, want InvalidStateError", err)
	}
	if inv.State != model.SessionRejected {
		t.Errorf("invalid state reports %s, want rejected", inv.State)
	}
}

func TestAdminSettle(t *testing.T) {
	store := openTestStore(t)
	seedCatalog(t, store, map[int64]int{1: 2})
	ctx := context.Background()
	now := time.Now()

	sess := newSession("wallet-a", now)
	if err := store.CreateSession(ctx, sess, []int64{1}, now); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	// Settle works regardless of expiry and ownership.
	settled, err := store.AdminSettle(ctx, sess.ID, now.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("AdminSettle failed: %v", err)
	}
	if settled.State != model.SessionSettled {
		t.Errorf("state = %s, want settled", settled.State)
	}

	cards, err := store.CardsByIDs(ctx, sess.CardIDs)
	if err != nil {
		t.Fatal(err)
	}
	if cards[0].Status != model.CardUserOwned {
		t.Errorf("card status = %s, want user_owned", cards[0].Status)
	}

	// Settling again is a no-op transition, not an error.
	if _, err := store.AdminSettle(ctx, sess.ID, now); err != nil {
		t.Errorf("re-settle failed: %v", err)
	}

	if _, err := store.AdminSettle(ctx, "missing", now); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("missing session error = %v, want ErrSessionNotFound", err)
	}
}

func TestExpireStale(t *testing.T) {
	store := openTestStore(t)
	seedCatalog(t, store, map[int64]int{1: 4})
	ctx := context.Background()
	now := time.Now()

	stale := newSession("wallet-a", now)
	if err := store.CreateSession(ctx, stale, []int64{1}, now); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	fresh := newSession("wallet-b", now)
	fresh.ExpiresAt = now.Add(2 * time.Hour)
	if err := store.CreateSession(ctx, fresh, []int64{1}, now); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	expired, err := store.ExpireStale(ctx, now.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("ExpireStale failed: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired %d sessions, want 1", expired)
	}

	got, err := store.SessionByID(ctx, stale.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != model.SessionExpired {
		t.Errorf("stale session state = %s, want expired", got.State)
	}

	still, err := store.SessionByID(ctx, fresh.ID)
	if err != nil {
		t.Fatal(err)
	}
	if still.State != model.SessionPending {
		t.Errorf("fresh session state = %s, want pending", still.State)
	}

	n, err := store.AvailableCount(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("%d cards available after sweep, want 3", n)
	}
}
