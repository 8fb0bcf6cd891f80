package auth

// Provider names as they appear on a resolved Identity.
const (
	ProviderICE      = "ice"
	ProviderFirebase = "firebase"
)

// Identity is the caller resolved from a bearer credential. It is built per
// request and never persisted. UserID may be rewritten once by the metadata
// linker, nothing else changes after construction.
type Identity struct {
	UserID   string
	Email    string
	Role     string
	RawToken string
	Metadata string // raw metadata credential, kept after a successful link for forwarding

	// Phone-migration flow fields, populated from headers instead of a token.
	DeviceUniqueID       string
	Language             string
	PhoneNumberMigration bool
	SendEmailMagicLink   bool

	provider string
}

// IsICE reports whether the identity was minted by the internal issuer.
func (i *Identity) IsICE() bool {
	return i.provider == ProviderICE
}

// Provider returns the trust provider that verified the credential.
func (i *Identity) Provider() string {
	return i.provider
}
