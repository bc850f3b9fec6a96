package iap

import (
	"context"
	"fmt"

	"github.com/awa/go-iap/playstore"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/option"

	"github.com/Berobasket/gdx-pay/internal/domain/entity"
)

// Play Developer API states a verified purchase must be in
const (
	productStatePurchased   = 0
	subscriptionStateActive = "SUBSCRIPTION_STATE_ACTIVE"
	subscriptionStateGrace  = "SUBSCRIPTION_STATE_IN_GRACE_PERIOD"
)

type productVerifier interface {
	VerifyProduct(ctx context.Context, packageName, productID, token string) (*androidpublisher.ProductPurchase, error)
}

type subscriptionGetter interface {
	GetSubscription(ctx context.Context, packageName, token string) (*androidpublisher.SubscriptionPurchaseV2, error)
}

// GoogleVerifier checks purchases against the Google Play Developer API
type GoogleVerifier struct {
	products      productVerifier
	subscriptions subscriptionGetter
}

// NewGoogleVerifier creates a verifier authenticated with a service account
func NewGoogleVerifier(ctx context.Context, serviceAccountJSON string) (*GoogleVerifier, error) {
	products, err := playstore.New([]byte(serviceAccountJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create Play Store client: %w", err)
	}

	// Parse service account JSON and create OAuth2 client
	conf, err := google.CredentialsFromJSON(
		ctx,
		[]byte(serviceAccountJSON),
		androidpublisher.AndroidpublisherScope,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
	}

	service, err := androidpublisher.NewService(ctx, option.WithTokenSource(conf.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Android Publisher service: %w", err)
	}

	return &GoogleVerifier{
		products:      products,
		subscriptions: publisherSubscriptions{service: service},
	}, nil
}

// Verify confirms that tx is a purchase Google Play knows about and that it
// is still in good standing.
func (v *GoogleVerifier) Verify(ctx context.Context, tx entity.Transaction) error {
	if tx.PurchaseType.IsSubscription() {
		return v.verifySubscription(ctx, tx)
	}
	return v.verifyProduct(ctx, tx)
}

func (v *GoogleVerifier) verifyProduct(ctx context.Context, tx entity.Transaction) error {
	purchase, err := v.products.VerifyProduct(ctx, tx.PackageName, tx.Identifier, tx.PurchaseToken)
	if err != nil {
		return fmt.Errorf("failed to verify Google Play product: %w", err)
	}
	if purchase.PurchaseState != productStatePurchased {
		return fmt.Errorf("product '%s' is in purchase state %d", tx.Identifier, purchase.PurchaseState)
	}
	if purchase.OrderId != "" && tx.OrderID != "" && purchase.OrderId != tx.OrderID {
		return fmt.Errorf("order id mismatch: purchase data has '%s', Google Play has '%s'", tx.OrderID, purchase.OrderId)
	}
	return nil
}

func (v *GoogleVerifier) verifySubscription(ctx context.Context, tx entity.Transaction) error {
	sub, err := v.subscriptions.GetSubscription(ctx, tx.PackageName, tx.PurchaseToken)
	if err != nil {
		return fmt.Errorf("failed to verify Google Play subscription: %w", err)
	}
	if sub.SubscriptionState != subscriptionStateActive && sub.SubscriptionState != subscriptionStateGrace {
		return fmt.Errorf("subscription '%s' is in state %s", tx.Identifier, sub.SubscriptionState)
	}
	for _, item := range sub.LineItems {
		if item.ProductId == tx.Identifier {
			return nil
		}
	}
	return fmt.Errorf("subscription token does not cover product '%s'", tx.Identifier)
}

// publisherSubscriptions reads subscriptions through the v2 purchases API
type publisherSubscriptions struct {
	service *androidpublisher.Service
}

func (p publisherSubscriptions) GetSubscription(ctx context.Context, packageName, token string) (*androidpublisher.SubscriptionPurchaseV2, error) {
	return p.service.Purchases.Subscriptionsv2.Get(packageName, token).Context(ctx).Do()
}
