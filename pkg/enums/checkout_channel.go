package enums

import "fmt"

// CheckoutChannel identifies the entry point a checkout came through.
type CheckoutChannel string

const (
	CheckoutChannelWeb      CheckoutChannel = "web"
	CheckoutChannelWhatsApp CheckoutChannel = "whatsapp"
	CheckoutChannelLegacy   CheckoutChannel = "legacy"
)

var validCheckoutChannels = []CheckoutChannel{
	CheckoutChannelWeb,
	CheckoutChannelWhatsApp,
	CheckoutChannelLegacy,
}

func (c CheckoutChannel) String() string {
	return string(c)
}

func (c CheckoutChannel) IsValid() bool {
	for _, candidate := range validCheckoutChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// RequiresPhone reports whether the channel needs a reachable customer phone.
func (c CheckoutChannel) RequiresPhone() bool {
	return c == CheckoutChannelWhatsApp
}

func ParseCheckoutChannel(value string) (CheckoutChannel, error) {
	for _, candidate := range validCheckoutChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout channel %q", value)
}
