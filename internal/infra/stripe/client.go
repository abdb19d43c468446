package stripe

import (
	"context"
	"errors"

	stripego "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
)

var ErrNotConfigured = errors.New("stripe: secret key not configured")

// CheckoutRequest describes a hosted checkout for one price.
type CheckoutRequest struct {
	StoreID       string
	PriceID       string
	Subscription  bool
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// Client talks to Stripe with its own API handle rather than the package
// level stripe.Key.
type Client struct {
	api *client.API
}

// NewClient returns nil when key is empty; handlers then answer 503.
func NewClient(key string) *Client {
	if key == "" {
		return nil
	}
	return &Client{api: client.New(key, nil)}
}

func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	if c == nil {
		return "", ErrNotConfigured
	}
	meta := map[string]string{"store_id": req.StoreID, "price_id": req.PriceID}

	params := &stripego.CheckoutSessionParams{
		SuccessURL:        stripego.String(req.SuccessURL),
		CancelURL:         stripego.String(req.CancelURL),
		ClientReferenceID: stripego.String(req.StoreID),
		LineItems: []*stripego.CheckoutSessionLineItemParams{
			{Price: stripego.String(req.PriceID), Quantity: stripego.Int64(1)},
		},
		Metadata: meta,
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripego.String(req.CustomerEmail)
	}
	if req.Subscription {
		params.Mode = stripego.String(string(stripego.CheckoutSessionModeSubscription))
		params.SubscriptionData = &stripego.CheckoutSessionSubscriptionDataParams{Metadata: meta}
	} else {
		params.Mode = stripego.String(string(stripego.CheckoutSessionModePayment))
	}

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return "", err
	}
	return s.URL, nil
}

func (c *Client) GetSubscription(ctx context.Context, id string) (*stripego.Subscription, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	params := &stripego.SubscriptionParams{}
	params.Context = ctx
	return c.api.Subscriptions.Get(id, params)
}

// ListPrices returns every active price with its product expanded.
func (c *Client) ListPrices(ctx context.Context) ([]*stripego.Price, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	params := &stripego.PriceListParams{}
	params.Context = ctx
	params.Active = stripego.Bool(true)
	params.AddExpand("data.product")

	var out []*stripego.Price
	it := c.api.Prices.List(params)
	for it.Next() {
		out = append(out, it.Price())
	}
	return out, it.Err()
}
