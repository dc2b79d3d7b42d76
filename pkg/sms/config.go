package sms

// Config holds SMS channel configuration. Only configured providers
// join the fallback chain.
type Config struct {
	DefaultRegion string `env:"SMS_DEFAULT_REGION" envDefault:"US"`

	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `env:"TWILIO_FROM_NUMBER"`

	GatewayURL    string `env:"SMS_GATEWAY_URL"`
	GatewayAPIKey string `env:"SMS_GATEWAY_API_KEY"`
	GatewaySender string `env:"SMS_GATEWAY_SENDER"`
}
