package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/GrishaDaradjanovv/Dani/internal/domain"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// isInteractive reports whether in is a terminal.
func isInteractive(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func addShippingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("full-name", "", "shipping: full name")
	f.String("address-line1", "", "shipping: street address")
	f.String("address-line2", "", "shipping: apartment, suite (optional)")
	f.String("city", "", "shipping: city")
	f.String("state", "", "shipping: state or province")
	f.String("postal-code", "", "shipping: postal code")
	f.String("country", "", "shipping: country")
	f.String("phone", "", "shipping: phone number")
}

func shippingFromFlags(cmd *cobra.Command) domain.ShippingAddress {
	get := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return strings.TrimSpace(v)
	}
	return domain.ShippingAddress{
		FullName:     get("full-name"),
		AddressLine1: get("address-line1"),
		AddressLine2: get("address-line2"),
		City:         get("city"),
		State:        get("state"),
		PostalCode:   get("postal-code"),
		Country:      get("country"),
		Phone:        get("phone"),
	}
}

// collectShipping takes the address from flags and, on a terminal, asks for
// whatever is still missing.
func collectShipping(cmd *cobra.Command) (domain.ShippingAddress, error) {
	addr := shippingFromFlags(cmd)
	if len(addr.MissingFields()) == 0 || !isInteractive(cmd.InOrStdin()) {
		return addr, nil
	}
	if err := promptShipping(&addr); err != nil {
		return addr, err
	}
	return addr, nil
}

func required(label string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", label)
		}
		return nil
	}
}

func promptShipping(addr *domain.ShippingAddress) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().Title("Shipping address"),
			huh.NewInput().Title("Full name").Value(&addr.FullName).Validate(required("full name")),
			huh.NewInput().Title("Address line 1").Value(&addr.AddressLine1).Validate(required("address")),
			huh.NewInput().Title("Address line 2").Placeholder("optional").Value(&addr.AddressLine2),
			huh.NewInput().Title("City").Value(&addr.City).Validate(required("city")),
			huh.NewInput().Title("State").Value(&addr.State).Validate(required("state")),
			huh.NewInput().Title("Postal code").Value(&addr.PostalCode).Validate(required("postal code")),
			huh.NewInput().Title("Country").Value(&addr.Country).Validate(required("country")),
			huh.NewInput().Title("Phone").Value(&addr.Phone).Validate(required("phone")),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("shipping form: %w", err)
	}
	return nil
}

// promptCredentials asks for whichever of email and password is empty.
func promptCredentials(email, password *string) error {
	var fields []huh.Field
	if *email == "" {
		fields = append(fields, huh.NewInput().Title("Email").Value(email).Validate(required("email")))
	}
	if *password == "" {
		fields = append(fields, huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(password).Validate(required("password")))
	}
	if len(fields) == 0 {
		return nil
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}
