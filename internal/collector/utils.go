package collector

import (
	"fmt"
	"net"

	"github.com/wtask/collector/internal/collector/queue"
)

// formatMessage - renders the reported line for a drained message.
// Clients are expected, but not forced, to send newline-terminated
// payloads, so no line break is appended here.
func formatMessage(m queue.Message) string {
	return fmt.Sprintf("Message from Client %d: %s", m.ClientID, m.Payload)
}

// formatAddress - formats specified network address for logging purposes.
func formatAddress(a net.Addr) string {
	if a == nil {
		return ""
	}
	return fmt.Sprintf("%s %s", a.Network(), a.String())
}
