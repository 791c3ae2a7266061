package notifications

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"marketplace-api/models"
)

// Message is the human readable form of an order event.
type Message struct {
	Title string
	Body  string
	// Email is set for events worth a mail to the customer.
	Email bool
}

func MessageFor(ev models.OrderEvent) Message {
	num := ev.OrderNumber
	switch ev.Type {
	case models.EventOrderCreated:
		return Message{
			Title: "Order placed",
			Body:  fmt.Sprintf("Your order %s was placed. Total %s.", num, ev.Total.StringFixed(2)),
			Email: true,
		}
	case models.EventCancellationRequested:
		return Message{Title: "Cancellation requested", Body: fmt.Sprintf("We asked the shop to cancel order %s.", num)}
	case models.EventOrderCancelled:
		return Message{Title: "Order cancelled", Body: fmt.Sprintf("Order %s was cancelled.", num), Email: true}
	case models.EventOrderRefunded:
		return Message{
			Title: "Refund issued",
			Body:  fmt.Sprintf("Order %s was refunded. %s is on its way back to you.", num, ev.Total.StringFixed(2)),
			Email: true,
		}
	case models.EventDeliveryAssigned:
		return Message{Title: "Courier assigned", Body: fmt.Sprintf("A courier is assigned to order %s.", num)}
	case models.EventPaymentSucceeded:
		return Message{Title: "Payment received", Body: fmt.Sprintf("Payment for order %s went through.", num)}
	case models.EventPaymentFailed:
		return Message{Title: "Payment failed", Body: fmt.Sprintf("Payment for order %s failed. Please try again.", num)}
	case models.EventOrderStatusChanged:
		msg := Message{Title: "Order update", Body: fmt.Sprintf("Order %s is now %s.", num, statusText(ev.Status))}
		if ev.Status == models.StatusDelivered {
			msg.Title = "Order delivered"
			msg.Email = true
		}
		return msg
	}
	return Message{Title: "Order update", Body: fmt.Sprintf("Order %s was updated.", num)}
}

func statusText(s models.OrderStatus) string {
	return strings.ToLower(strings.ReplaceAll(string(s), "_", " "))
}

// HTML renders the message as a minimal mail body.
func (m Message) HTML() string {
	return fmt.Sprintf("<h2>%s</h2><p>%s</p>", html.EscapeString(m.Title), html.EscapeString(m.Body))
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return html.UnescapeString(strings.TrimSpace(tagPattern.ReplaceAllString(s, " ")))
}
