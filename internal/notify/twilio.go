package notify

import (
	"context"
	"errors"
	"net/http"

	twilio "github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// ErrMissingCredentials is returned when the Twilio account is not configured
var ErrMissingCredentials = errors.New("twilio account sid and auth token are required")

// TwilioGateway sends SMS through the Twilio REST API
type TwilioGateway struct {
	client *twilio.RestClient
}

// NewTwilioGateway creates a gateway authenticated with the account credentials
func NewTwilioGateway(accountSID, authToken string) (*TwilioGateway, error) {
	if accountSID == "" || authToken == "" {
		return nil, ErrMissingCredentials
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioGateway{client: client}, nil
}

type twilioResult struct {
	msg *openapi.ApiV2010Message
	err error
}

// SendMessage creates an outbound message. The Twilio client has no context
// support, so cancellation abandons the call without aborting it.
func (g *TwilioGateway) SendMessage(ctx context.Context, body, from, to string) (DeliveryResult, error) {
	if err := ctx.Err(); err != nil {
		return DeliveryResult{}, err
	}

	params := &openapi.CreateMessageParams{}
	params.SetBody(body)
	params.SetFrom(from)
	params.SetTo(to)

	done := make(chan twilioResult, 1)
	go func() {
		msg, err := g.client.Api.CreateMessage(params)
		done <- twilioResult{msg: msg, err: err}
	}()

	select {
	case <-ctx.Done():
		return DeliveryResult{}, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return DeliveryResult{}, classifyTwilioError(res.err)
		}
		return toDeliveryResult(res.msg), nil
	}
}

func toDeliveryResult(msg *openapi.ApiV2010Message) DeliveryResult {
	var result DeliveryResult
	if msg == nil {
		return result
	}
	if msg.Sid != nil {
		result.ID = *msg.Sid
	}
	if msg.Status != nil {
		result.Status = *msg.Status
	}
	return result
}

// classifyTwilioError marks client errors other than throttling as permanent
func classifyTwilioError(err error) error {
	var restErr *twilioclient.TwilioRestError
	if errors.As(err, &restErr) {
		if restErr.Status >= 400 && restErr.Status < 500 && restErr.Status != http.StatusTooManyRequests {
			return Permanent(err)
		}
	}
	return err
}
