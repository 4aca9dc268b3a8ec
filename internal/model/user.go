package model

// User is one subscriber. Token is the secret path segment of the user's
// subscription URL (/sub/{token}).
type User struct {
	ID              string `yaml:"id" json:"id"`
	Token           string `yaml:"token" json:"token"`
	Name            string `yaml:"name,omitempty" json:"name,omitempty"`
	SubscriptionURL string `yaml:"subscription_url,omitempty" json:"subscription_url,omitempty"`
	NamingTemplate  string `yaml:"naming_template,omitempty" json:"naming_template,omitempty"`
	Disabled        bool   `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}
