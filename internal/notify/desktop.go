package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	fdoDest  = "org.freedesktop.Notifications"
	fdoPath  = dbus.ObjectPath("/org/freedesktop/Notifications")
	fdoIface = "org.freedesktop.Notifications"
)

// DesktopNotifier shows alerts through the freedesktop notification service
// on the session bus. The connection is opened on first use.
type DesktopNotifier struct {
	mu      sync.Mutex
	conn    *dbus.Conn
	appName string
	icon    string
	logger  *log.Logger
}

func NewDesktopNotifier(appName, icon string, logger *log.Logger) *DesktopNotifier {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &DesktopNotifier{appName: appName, icon: icon, logger: logger}
}

func (n *DesktopNotifier) connect() (*dbus.Conn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil && n.conn.Connected() {
		return n.conn, nil
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	n.conn = conn
	return conn, nil
}

// CheckPermission succeeds when a notification server answers on the bus.
func (n *DesktopNotifier) CheckPermission(ctx context.Context) (bool, error) {
	conn, err := n.connect()
	if err != nil {
		return false, err
	}
	var capabilities []string
	call := conn.Object(fdoDest, fdoPath).CallWithContext(ctx, fdoIface+".GetCapabilities", 0)
	if err := call.Store(&capabilities); err != nil {
		return false, fmt.Errorf("query notification server: %w", err)
	}
	return true, nil
}

func (n *DesktopNotifier) Display(ctx context.Context, alert Alert) (string, error) {
	conn, err := n.connect()
	if err != nil {
		return "", err
	}

	hints := map[string]dbus.Variant{
		"urgency":           dbus.MakeVariant(urgency(alert.Priority)),
		"x-tomato-alert-id": dbus.MakeVariant(alert.ID),
	}
	// -1 lets the server pick; 0 keeps the alert until dismissed.
	expire := int32(-1)
	if alert.RequireInteraction {
		expire = 0
		hints["resident"] = dbus.MakeVariant(true)
	}

	var id uint32
	call := conn.Object(fdoDest, fdoPath).CallWithContext(ctx, fdoIface+".Notify", 0,
		n.appName, uint32(0), n.icon, alert.Title, alert.Body,
		[]string{"default", "Open"}, hints, expire)
	if err := call.Store(&id); err != nil {
		return "", fmt.Errorf("notify: %w", err)
	}
	return strconv.FormatUint(uint64(id), 10), nil
}

// WatchSignals logs clicks on and dismissals of our alerts until ctx is
// done.
func (n *DesktopNotifier) WatchSignals(ctx context.Context) error {
	conn, err := n.connect()
	if err != nil {
		return err
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(fdoPath),
		dbus.WithMatchInterface(fdoIface),
	); err != nil {
		return fmt.Errorf("subscribe notification signals: %w", err)
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			n.logSignal(sig)
		}
	}
}

func (n *DesktopNotifier) logSignal(sig *dbus.Signal) {
	switch sig.Name {
	case fdoIface + ".ActionInvoked":
		if len(sig.Body) >= 2 {
			n.logger.Printf("notification %v clicked (action %v)", sig.Body[0], sig.Body[1])
		}
	case fdoIface + ".NotificationClosed":
		if len(sig.Body) >= 2 {
			reason, _ := sig.Body[1].(uint32)
			n.logger.Printf("notification %v closed: %s", sig.Body[0], closeReason(reason))
		}
	}
}

func (n *DesktopNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		return nil
	}
	err := n.conn.Close()
	n.conn = nil
	return err
}

func urgency(priority int) byte {
	switch {
	case priority >= 2:
		return 2
	case priority == 1:
		return 1
	default:
		return 0
	}
}

func closeReason(reason uint32) string {
	switch reason {
	case 1:
		return "expired"
	case 2:
		return "dismissed"
	case 3:
		return "closed by call"
	default:
		return "unknown reason"
	}
}
