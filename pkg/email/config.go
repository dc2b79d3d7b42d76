package email

// Config holds email channel configuration. Provider credentials are
// optional: only configured providers join the fallback chain, but the
// sender identity is always required.
type Config struct {
	SenderEmail  string `env:"EMAIL_SENDER,required"`
	SenderName   string `env:"EMAIL_SENDER_NAME" envDefault:""`
	SupportEmail string `env:"EMAIL_SUPPORT" envDefault:""`

	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`

	SendGridAPIKey string `env:"SENDGRID_API_KEY"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
}
