package batch

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	orderdomain "github.com/nordial/invoicerun/internal/order/domain"
)

// ConfirmFunc gates submission of one customer's order. Returning false
// skips the customer without failing the run.
type ConfirmFunc func(customer orderdomain.CustomerInfo, order *orderdomain.SalesOrder) bool

// AutoConfirm approves every order, for unattended runs.
func AutoConfirm(orderdomain.CustomerInfo, *orderdomain.SalesOrder) bool {
	return true
}

// NewStdinConfirm prompts y/n on the terminal per customer. Anything but an
// explicit yes declines.
func NewStdinConfirm() ConfirmFunc {
	reader := bufio.NewReader(os.Stdin)
	return func(customer orderdomain.CustomerInfo, order *orderdomain.SalesOrder) bool {
		fmt.Printf("Submit order for %s (customer no %s, %d lines, total %.2f)? [y/N]: ",
			customer.Name, order.CustomerNo, len(order.Lines), order.Total())
		answer, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}
}
