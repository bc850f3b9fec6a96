package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Berobasket/gdx-pay/internal/application/dto"
	"github.com/Berobasket/gdx-pay/internal/domain/entity"
	domainErrors "github.com/Berobasket/gdx-pay/internal/domain/errors"
	"github.com/Berobasket/gdx-pay/internal/domain/valueobject"
)

// ProductCatalog looks up product details
type ProductCatalog interface {
	GetProductsDetails(ctx context.Context, ids []string, purchaseType valueobject.PurchaseType) (map[string]entity.Information, error)
}

// PurchaseLister lists owned purchases
type PurchaseLister interface {
	GetPurchases(ctx context.Context) ([]entity.Transaction, error)
	IsTestPurchase(tx entity.Transaction) bool
}

// ConnectionStatus reports the billing connection state
type ConnectionStatus interface {
	State() valueobject.ConnectionState
	IsConnected() bool
	IsListeningForConnections() bool
}

// GetProductsQuery handles product details lookups
type GetProductsQuery struct {
	catalog ProductCatalog
}

// NewGetProductsQuery creates a new get products query
func NewGetProductsQuery(catalog ProductCatalog) *GetProductsQuery {
	return &GetProductsQuery{
		catalog: catalog,
	}
}

// Execute executes the get products query. Products are returned in request
// order; ids the service did not describe are listed as missing.
func (q *GetProductsQuery) Execute(ctx context.Context, req *dto.ProductsRequest) (*dto.ProductsResponse, error) {
	ids := normalizeIDs(req.IDs)
	if len(ids) == 0 {
		return nil, domainErrors.NewValidationError("ids", domainErrors.ErrRequiredField, "at least one product id is required")
	}

	purchaseType := valueobject.PurchaseTypeInApp
	if req.Type != "" {
		pt, err := valueobject.NewPurchaseType(req.Type)
		if err != nil {
			return nil, &domainErrors.ValidationError{Field: "type", Err: err}
		}
		purchaseType = pt
	}

	details, err := q.catalog.GetProductsDetails(ctx, ids, purchaseType)
	if err != nil {
		return nil, fmt.Errorf("failed to get product details: %w", err)
	}

	resp := &dto.ProductsResponse{Products: make([]dto.ProductResponse, 0, len(details))}
	for _, id := range ids {
		info, ok := details[id]
		if !ok {
			resp.Missing = append(resp.Missing, id)
			continue
		}
		resp.Products = append(resp.Products, dto.NewProductResponse(info))
	}
	return resp, nil
}

// normalizeIDs splits comma separated ids, trims them and drops duplicates
func normalizeIDs(raw []string) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, chunk := range raw {
		for _, id := range strings.Split(chunk, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// ListPurchasesQuery handles owned purchase listings
type ListPurchasesQuery struct {
	purchases PurchaseLister
}

// NewListPurchasesQuery creates a new list purchases query
func NewListPurchasesQuery(purchases PurchaseLister) *ListPurchasesQuery {
	return &ListPurchasesQuery{
		purchases: purchases,
	}
}

// Execute lists in-app purchases followed by subscriptions, each group
// ordered by purchase time.
func (q *ListPurchasesQuery) Execute(ctx context.Context) (*dto.PurchasesResponse, error) {
	txs, err := q.purchases.GetPurchases(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get purchases: %w", err)
	}

	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].PurchaseType != txs[j].PurchaseType {
			return !txs[i].PurchaseType.IsSubscription()
		}
		return txs[i].PurchaseTime.Before(txs[j].PurchaseTime)
	})

	resp := &dto.PurchasesResponse{Purchases: make([]dto.TransactionResponse, 0, len(txs))}
	for _, tx := range txs {
		resp.Purchases = append(resp.Purchases, dto.NewTransactionResponse(tx, q.purchases.IsTestPurchase(tx)))
	}
	resp.Count = len(resp.Purchases)
	return resp, nil
}

// GetStatusQuery reports the billing connection status
type GetStatusQuery struct {
	status ConnectionStatus
}

// NewGetStatusQuery creates a new status query
func NewGetStatusQuery(status ConnectionStatus) *GetStatusQuery {
	return &GetStatusQuery{status: status}
}

// Execute executes the status query
func (q *GetStatusQuery) Execute() *dto.StatusResponse {
	return &dto.StatusResponse{
		State:     q.status.State().String(),
		Connected: q.status.IsConnected(),
		Listening: q.status.IsListeningForConnections(),
	}
}
