package models

// Config is the service discovery state shared by every account.
type Config struct {
	AuthURL                   string `json:"authUrl"`
	UserInfoURL               string `json:"userInfoUrl"`
	ActivationCertificate     string `json:"activationCertificate"`
	AuthenticationCertificate string `json:"authenticationCertificate"`
	CurrentUser               string `json:"currentUser,omitempty"`
}

// Ready reports whether discovery already ran.
func (c *Config) Ready() bool {
	return c != nil && c.ActivationCertificate != "" && c.AuthenticationCertificate != ""
}
