package oracle

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/portsql/pkg/dialect"
	"github.com/leapstack-labs/portsql/pkg/dialects/oracle"
)

// Params holds Oracle-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// Legacy selects the pre-12c dialect: 30 byte identifiers and ROWNUM ranges.
	Legacy bool `mapstructure:"legacy"`

	// Session settings applied to every new connection with ALTER SESSION
	// (e.g., NLS_DATE_FORMAT, NLS_SORT).
	Session map[string]string `mapstructure:"session"`
}

func parseParams(params map[string]any) (*Params, error) {
	p := &Params{}
	if len(params) == 0 {
		return p, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create params decoder: %w", err)
	}
	if err := decoder.Decode(params); err != nil {
		return nil, fmt.Errorf("failed to decode oracle params: %w", err)
	}
	return p, nil
}

// DialectFor returns the dialect a connection with params would use.
func DialectFor(params map[string]any) (*dialect.Dialect, error) {
	p, err := parseParams(params)
	if err != nil {
		return nil, err
	}
	if p.Legacy {
		return oracle.Legacy, nil
	}
	return oracle.Oracle, nil
}
