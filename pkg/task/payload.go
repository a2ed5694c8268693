package task

import (
	"encoding/json"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/drsholding/pkg/failure"
	"github.com/walteh/drsholding/pkg/operation"
)

const (
	FlagDRSHolding  = "drs_holding_record_feature_flag"
	FlagSendToDRS   = "send_to_drs_feature_flag"
	FlagForceUpdate = "alma_feature_force_update_flag"
	FlagVerbose     = "alma_feature_verbose_flag"
)

// FeatureFlags are the on/off switches carried by pipeline messages
type FeatureFlags map[string]any

// On reports whether name is set to "on"
func (f FeatureFlags) On(name string) bool {
	v, ok := f[name].(string)
	return ok && strings.EqualFold(v, "on")
}

// 📨 Payload is the single positional argument of add_holdings
type Payload struct {
	PQID            string       `json:"pqid"`
	ObjectURN       string       `json:"object_urn"`
	FeatureFlags    FeatureFlags `json:"feature_flags,omitempty"`
	IntegrationTest bool         `json:"integration_test,omitempty"`
	Traceparent     string       `json:"traceparent,omitempty"`

	// unitTest is set when the key is present at all, whatever its value
	unitTest bool
}

// ParsePayload decodes raw into a Payload
func ParsePayload(raw []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, errors.Errorf("%w: decoding payload: %s", failure.ErrValidation, err.Error())
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, errors.Errorf("%w: decoding payload keys: %s", failure.ErrValidation, err.Error())
	}
	_, p.unitTest = keys["unit_test"]
	return &p, nil
}

// UnitTest reports whether the message asked not to publish its continuation
func (p *Payload) UnitTest() bool { return p.unitTest }

// Request maps the payload onto a sync request
func (p *Payload) Request() operation.Request {
	return operation.Request{
		ExternalID:      strings.TrimSpace(p.PQID),
		ObjectURN:       strings.TrimSpace(p.ObjectURN),
		Force:           p.FeatureFlags.On(FlagForceUpdate),
		Verbose:         p.FeatureFlags.On(FlagVerbose),
		IntegrationTest: p.IntegrationTest,
	}
}

// holdingEnabled is true only when both holding flags are on
func (p *Payload) holdingEnabled() bool {
	return p.FeatureFlags.On(FlagDRSHolding) && p.FeatureFlags.On(FlagSendToDRS)
}
