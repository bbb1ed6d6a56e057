package domain

// Notification event names, also used as message queue routing keys
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventUserActivated    = "user.activated"
)

// Recipient is the contact data a notification is delivered to
type Recipient struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	Phone     string `json:"phone,omitempty"`
	PushToken string `json:"push_token,omitempty"`
}

// RecipientFromUser extracts the contact data of a user
func RecipientFromUser(u *User) Recipient {
	return Recipient{
		UserID:    u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		Phone:     u.Profile.PhoneNumber,
		PushToken: u.Profile.PushToken,
	}
}

// PaymentReceipt is the payload of a payment success notification
type PaymentReceipt struct {
	Recipient     Recipient `json:"recipient"`
	PackageName   string    `json:"package_name"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	TransactionID string    `json:"transaction_id"`
}

// Welcome is the payload of a welcome notification sent after activation
type Welcome struct {
	Recipient Recipient `json:"recipient"`
}
