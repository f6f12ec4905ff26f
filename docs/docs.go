// Package docs registers the swagger documents of the gateway and the
// billing service. The JSON files are generated by swag from the handler
// annotations; regenerate them with go generate after changing a route.
package docs

//go:generate swag init --dir ../ --exclude ../_examples --generalInfo cmd/gateway/main.go --output . --outputTypes json --instanceName gateway --tags invoices,resources
//go:generate swag init --dir ../ --exclude ../_examples --generalInfo cmd/billing/main.go --output . --outputTypes json --instanceName billing --tags system,events,outbox

import (
	_ "embed"

	"github.com/swaggo/swag/v2"
)

// Instance names the documents are registered under
const (
	Gateway = "gateway"
	Billing = "billing"
)

var (
	//go:embed gateway_swagger.json
	gatewayDoc string
	//go:embed billing_swagger.json
	billingDoc string
)

// document serves a pre-rendered swagger file
type document string

func (d document) ReadDoc() string { return string(d) }

func init() {
	swag.Register(Gateway, document(gatewayDoc))
	swag.Register(Billing, document(billingDoc))
}
