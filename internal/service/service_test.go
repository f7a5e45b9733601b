package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"utilisoft/backend/internal/cart"
	"utilisoft/backend/internal/domain"
	"utilisoft/backend/internal/sale"
	"utilisoft/backend/internal/stats"
	"utilisoft/backend/internal/store"
	"utilisoft/backend/internal/store/memory"
	"utilisoft/backend/internal/suggest"
)

func newTestService() (*Service, *memory.Store) {
	repo := memory.NewSeeded()
	committer := sale.NewCommitter(repo)
	sessions := sale.NewSessions(committer, sale.NewMemoryGuard(), time.Minute)
	return New(repo, sessions, suggest.NewEngine(repo, nil, 0), stats.NewAggregator(repo, nil, 0)), repo
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{UserID: 1, Username: "admin", Role: domain.RoleAdmin})
}

func salesmanCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{UserID: 2, Username: "salesman", Role: domain.RoleSalesman})
}

func TestCartFlowCommitsAndClears(t *testing.T) {
	svc, repo := newTestService()
	ctx := salesmanCtx()

	if _, err := svc.AddToCart(ctx, domain.CartAddRequest{ProductID: 1}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	view, err := svc.AddToCart(ctx, domain.CartAddRequest{ProductID: 1})
	if err != nil {
		t.Fatalf("second add failed: %v", err)
	}
	if len(view.Lines) != 1 || view.Lines[0].Quantity != 2 {
		t.Fatalf("expected one line of quantity 2, got %+v", view.Lines)
	}
	if !view.Total.Equal(decimal.RequireFromString("37")) {
		t.Fatalf("expected total 37, got %s", view.Total)
	}

	receipt, err := svc.Checkout(ctx, domain.CheckoutRequest{IdempotencyKey: "k-1"})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if receipt.OperatorID != 2 || len(receipt.Records) != 1 || receipt.Records[0].SalesmanID != 2 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	after, err := svc.ViewCart(ctx)
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
	if len(after.Lines) != 0 || !after.Total.IsZero() || after.Selected != -1 {
		t.Fatalf("expected cleared cart, got %+v", after)
	}
	if p, _ := repo.FindProduct(context.Background(), 1); p.Quantity != 38 {
		t.Fatalf("expected stock 38, got %d", p.Quantity)
	}
}

func TestCheckoutFailureKeepsCart(t *testing.T) {
	svc, repo := newTestService()
	ctx := salesmanCtx()

	if _, err := svc.AddToCart(ctx, domain.CartAddRequest{ProductID: 3}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := repo.DecrementStock(context.Background(), 3, 25); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	var hooked error
	svc.OnCheckout(func(err error, _ time.Duration) { hooked = err })

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{})
	var stockErr *sale.InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.Available != 0 || stockErr.Requested != 1 {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if !errors.Is(hooked, sale.ErrInsufficientStock) {
		t.Fatalf("expected hook to see failure, got %v", hooked)
	}

	view, _ := svc.ViewCart(ctx)
	if len(view.Lines) != 1 {
		t.Fatalf("expected cart kept after failure, got %+v", view.Lines)
	}
}

func TestCartsAreIsolatedPerOperator(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.AddToCart(salesmanCtx(), domain.CartAddRequest{ProductID: 1}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	view, err := svc.ViewCart(adminCtx())
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
	if len(view.Lines) != 0 {
		t.Fatalf("expected admin cart to be empty, got %+v", view.Lines)
	}
}

func TestAddToCartErrors(t *testing.T) {
	svc, _ := newTestService()
	ctx := salesmanCtx()

	if _, err := svc.AddToCart(ctx, domain.CartAddRequest{ProductID: 8}); !errors.Is(err, cart.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	if _, err := svc.AddToCart(ctx, domain.CartAddRequest{ProductID: 999}); !errors.Is(err, sale.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if _, err := svc.AddToCart(context.Background(), domain.CartAddRequest{ProductID: 1}); !errors.Is(err, sale.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestLineOperations(t *testing.T) {
	svc, _ := newTestService()
	ctx := salesmanCtx()

	for _, id := range []int64{1, 2} {
		if _, err := svc.AddToCart(ctx, domain.CartAddRequest{ProductID: id}); err != nil {
			t.Fatalf("add %d failed: %v", id, err)
		}
	}

	view, err := svc.IncrementLine(ctx, 0)
	if err != nil || view.Lines[0].Quantity != 2 {
		t.Fatalf("increment failed: %+v %v", view, err)
	}
	view, err = svc.DecrementLine(ctx, 0)
	if err != nil || view.Lines[0].Quantity != 1 {
		t.Fatalf("decrement failed: %+v %v", view, err)
	}
	if _, err := svc.IncrementLine(ctx, 5); !errors.Is(err, cart.ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}
	if _, err := svc.RemoveLine(ctx, 5); !errors.Is(err, cart.ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound on remove, got %v", err)
	}

	view, err = svc.RemoveLine(ctx, 0)
	if err != nil || len(view.Lines) != 1 || view.Lines[0].ProductID != 2 {
		t.Fatalf("remove failed: %+v %v", view, err)
	}
	if view.Selected != 0 {
		t.Fatalf("expected selection to follow the remaining line, got %d", view.Selected)
	}

	view, err = svc.ClearCart(ctx)
	if err != nil || len(view.Lines) != 0 {
		t.Fatalf("clear failed: %+v %v", view, err)
	}
}

func TestDuplicateCheckoutKeyIsRejected(t *testing.T) {
	svc, repo := newTestService()
	ctx := salesmanCtx()

	if _, err := svc.AddToCart(ctx, domain.CartAddRequest{ProductID: 1}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{IdempotencyKey: "same"}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if _, err := svc.AddToCart(ctx, domain.CartAddRequest{ProductID: 1}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{IdempotencyKey: "same"}); !errors.Is(err, sale.ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}
	if stats, _ := repo.LedgerStats(context.Background()); stats.Count != 1 {
		t.Fatalf("expected exactly one ledger row, got %d", stats.Count)
	}
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	svc, repo := newTestService()
	if _, err := repo.CreateProduct(context.Background(), domain.Product{Name: "Last Unit", Price: decimal.NewFromInt(3), Quantity: 1}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	const operators = 6
	for i := range operators {
		ctx := WithActor(context.Background(), domain.Actor{UserID: int64(10 + i), Role: domain.RoleSalesman})
		if _, err := svc.AddToCart(ctx, domain.CartAddRequest{ProductID: 11}); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0
	for i := range operators {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := WithActor(context.Background(), domain.Actor{UserID: int64(10 + i), Role: domain.RoleSalesman})
			if _, err := svc.Checkout(ctx, domain.CheckoutRequest{}); err == nil {
				mu.Lock()
				committed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if committed != 1 {
		t.Fatalf("expected exactly one winner, got %d", committed)
	}
	if p, _ := repo.FindProduct(context.Background(), 11); p.Quantity != 0 {
		t.Fatalf("expected stock 0, got %d", p.Quantity)
	}
}

func TestProductAdminGating(t *testing.T) {
	svc, _ := newTestService()
	req := domain.ProductCreateRequest{Name: " Rice Flour ", Price: decimal.RequireFromString("2.30"), Category: "Groceries", Quantity: 12}

	if _, err := svc.CreateProduct(salesmanCtx(), req); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired, got %v", err)
	}
	created, err := svc.CreateProduct(adminCtx(), req)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.Name != "Rice Flour" || created.ID == 0 {
		t.Fatalf("unexpected product %+v", created)
	}

	suggestions, err := svc.SuggestProducts(salesmanCtx(), "flour")
	if err != nil || len(suggestions) != 1 {
		t.Fatalf("expected new product in suggestions, got %+v %v", suggestions, err)
	}

	if err := svc.DeleteProduct(salesmanCtx(), created.ID); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired, got %v", err)
	}
	if err := svc.DeleteProduct(adminCtx(), created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := svc.GetProduct(adminCtx(), created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCreateProductValidation(t *testing.T) {
	svc, _ := newTestService()
	for _, req := range []domain.ProductCreateRequest{
		{Name: "  ", Price: decimal.NewFromInt(1)},
		{Name: "Negative", Price: decimal.NewFromInt(-1)},
		{Name: "Negative qty", Price: decimal.NewFromInt(1), Quantity: -2},
	} {
		if _, err := svc.CreateProduct(adminCtx(), req); !errors.Is(err, store.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument for %+v, got %v", req, err)
		}
	}
}

func TestDirectoryDatesAreParsedLeniently(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	debtor, err := svc.CreateDebtor(ctx, domain.DebtorCreateRequest{Name: "Ayesha", DebtAmount: decimal.NewFromInt(40), DateIncurred: "03/01/2024"})
	if err != nil {
		t.Fatalf("create debtor failed: %v", err)
	}
	if want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC); !debtor.DateIncurred.Equal(want) {
		t.Fatalf("expected %s, got %s", want, debtor.DateIncurred)
	}

	vendor, err := svc.CreateVendor(ctx, domain.VendorCreateRequest{Name: "Metro", DateOfSupply: "2024-03-05T10:00:00Z"})
	if err != nil {
		t.Fatalf("create vendor failed: %v", err)
	}
	if vendor.DateOfSupply.Day() != 5 {
		t.Fatalf("unexpected supply date %s", vendor.DateOfSupply)
	}

	worker, err := svc.CreateWorker(ctx, domain.WorkerCreateRequest{Name: "Sara", Email: " Sara@Example.com ", Salary: decimal.NewFromInt(900)})
	if err != nil {
		t.Fatalf("create worker failed: %v", err)
	}
	if worker.DateOfJoining.IsZero() || worker.Email != "sara@example.com" {
		t.Fatalf("unexpected worker %+v", worker)
	}

	if _, err := svc.CreateDebtor(ctx, domain.DebtorCreateRequest{Name: "Bad", DateIncurred: "not a date"}); !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for bad date, got %v", err)
	}
	if _, err := svc.CreateWorker(salesmanCtx(), domain.WorkerCreateRequest{Name: "X"}); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired, got %v", err)
	}

	found, err := svc.SearchDebtors(salesmanCtx(), "ayesha")
	if err != nil || len(found) != 1 {
		t.Fatalf("expected salesman to search debtors, got %+v %v", found, err)
	}
}

func TestStatsReflectCommitsAfterInvalidation(t *testing.T) {
	repo := memory.NewSeeded()
	committer := sale.NewCommitter(repo)
	aggregator := stats.NewAggregator(repo, nil, 0)
	committer.OnCommit(func(ctx context.Context, _ domain.SaleReceipt) { aggregator.Invalidate(ctx) })
	svc := New(repo, sale.NewSessions(committer, nil, 0), suggest.NewEngine(repo, nil, 0), aggregator)
	ctx := salesmanCtx()

	if _, err := svc.AddToCart(ctx, domain.CartAddRequest{ProductID: 5}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	got, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if got.Sales.Count != 1 || !got.Sales.TotalAmount.Equal(decimal.RequireFromString("2.10")) {
		t.Fatalf("unexpected sales stats %+v", got.Sales)
	}
	if got.Products.TotalStock != 1045 {
		t.Fatalf("expected total stock 1045, got %d", got.Products.TotalStock)
	}
}
