package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shengdoushi/base58"
)

// ContactPlatform is where a counterparty can be reached outside the platform.
type ContactPlatform string

const (
	PlatformPhone     ContactPlatform = "phone"
	PlatformWhatsapp  ContactPlatform = "whatsapp"
	PlatformTelegram  ContactPlatform = "telegram"
	PlatformInstagram ContactPlatform = "instagram"
	PlatformFacebook  ContactPlatform = "facebook"
	PlatformTiktok    ContactPlatform = "tiktok"
)

type Contact struct {
	ID       string          `json:"id"`
	Platform ContactPlatform `json:"platform"`
	Handle   string          `json:"username"`
}

type WalletType string

const (
	WalletPhantom  WalletType = "phantom"
	WalletSolflare WalletType = "solflare"
)

// MaxWallets caps the number of payout addresses on a profile.
const MaxWallets = 5

type WalletAddress struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Address string     `json:"address"`
	Type    WalletType `json:"walletType"`
}

// solanaAddressPattern is the base58 alphabet, 32-44 chars.
var solanaAddressPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

var walletTypeErrors = map[WalletType]string{
	WalletPhantom:  "invalid Phantom wallet address, enter a valid Solana address",
	WalletSolflare: "invalid Solflare wallet address, enter a valid Solana address",
}

// ValidateWalletAddress checks the address against the Solana base58 format
// for the given wallet type. The error message is wallet-type specific.
func ValidateWalletAddress(address string, typ WalletType) error {
	msg, ok := walletTypeErrors[typ]
	if !ok {
		return fmt.Errorf("unsupported wallet type: %s", typ)
	}
	if !solanaAddressPattern.MatchString(address) {
		return fmt.Errorf("%s", msg)
	}
	if _, err := base58.Decode(address, base58.BitcoinAlphabet); err != nil {
		return fmt.Errorf("%s", msg)
	}
	return nil
}

// User is the current account as returned by /user/getCurrentUser.
type User struct {
	ID                  string          `json:"_id"`
	SecureID            string          `json:"secureId"`
	FirstName           string          `json:"firstName"`
	LastName            string          `json:"lastName"`
	Email               string          `json:"email"`
	Location            string          `json:"location"`
	BusinessName        string          `json:"businessName"`
	BusinessDescription string          `json:"businessDescription"`
	Contacts            []Contact       `json:"contacts"`
	Wallets             []WalletAddress `json:"wallets"`
}

// AddWallet appends a validated wallet address to the profile.
// Duplicates are compared case-insensitively.
func (u *User) AddWallet(w WalletAddress) error {
	if len(u.Wallets) >= MaxWallets {
		return fmt.Errorf("at most %d wallet addresses allowed", MaxWallets)
	}
	if w.Name == "" || w.Address == "" {
		return fmt.Errorf("wallet name and address are required")
	}
	for _, existing := range u.Wallets {
		if strings.EqualFold(existing.Address, w.Address) {
			return fmt.Errorf("wallet address already added")
		}
	}
	if err := ValidateWalletAddress(w.Address, w.Type); err != nil {
		return err
	}
	u.Wallets = append(u.Wallets, w)
	return nil
}

// RemoveWallet drops a wallet entry by its local id.
func (u *User) RemoveWallet(id string) {
	kept := u.Wallets[:0]
	for _, w := range u.Wallets {
		if w.ID != id {
			kept = append(kept, w)
		}
	}
	u.Wallets = kept
}
