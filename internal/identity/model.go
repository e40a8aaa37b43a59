package identity

// Kind names an identity variant.
type Kind string

const (
	KindAdmin Kind = "admin"
	KindBuyer Kind = "buyer"
)

// Identity is the credential set currently acting for a visitor. It is
// either an Admin or a Buyer.
type Identity interface {
	Kind() Kind
	Token() string
	identity()
}

// Admin is created by password login and lasts until explicit logout.
type Admin struct {
	BearerToken     string `json:"token"`
	UserID          string `json:"userId"`
	Email           string `json:"email"`
	Role            string `json:"role"`
	HasSubscription bool   `json:"hasSubscription"`
}

func (Admin) Kind() Kind      { return KindAdmin }
func (a Admin) Token() string { return a.BearerToken }
func (Admin) identity()       {}

// Buyer is created by OTP verification. It lasts until logout or until the
// backend rejects its token.
type Buyer struct {
	OTPToken     string `json:"token"`
	MobileDigits string `json:"mobile"`
}

func (Buyer) Kind() Kind      { return KindBuyer }
func (b Buyer) Token() string { return b.OTPToken }
func (Buyer) identity()       {}

// Status is the read model exposed to UI screens.
type Status struct {
	Authenticated   bool   `json:"authenticated"`
	Admin           bool   `json:"admin"`
	HasSubscription bool   `json:"hasSubscription"`
	Kind            Kind   `json:"kind,omitempty"`
	Mobile          string `json:"mobile,omitempty"`
	Email           string `json:"email,omitempty"`
}

// StatusOf derives the UI status from the active identity. A nil identity
// is unauthenticated.
func StatusOf(id Identity) Status {
	switch v := id.(type) {
	case Admin:
		return Status{Authenticated: true, Admin: true, HasSubscription: v.HasSubscription, Kind: KindAdmin, Email: v.Email}
	case Buyer:
		return Status{Authenticated: true, Kind: KindBuyer, Mobile: v.MobileDigits}
	default:
		return Status{}
	}
}
