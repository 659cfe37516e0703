package service

// IdentifierKind namespaces rate-limit state so the same value can be
// tracked independently as a phone number and as an IP address.
type IdentifierKind string

const (
	KindPhoneNumber IdentifierKind = "phone_number"
	KindIPAddress   IdentifierKind = "ip_address"
)

// Identifier is the unit of rate limiting: a typed key.
type Identifier struct {
	Kind  IdentifierKind
	Value string
}

func PhoneIdentifier(phoneNumber string) Identifier {
	return Identifier{Kind: KindPhoneNumber, Value: phoneNumber}
}

func IPIdentifier(ipAddress string) Identifier {
	return Identifier{Kind: KindIPAddress, Value: ipAddress}
}
