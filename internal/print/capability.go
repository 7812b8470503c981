package print

import (
	"net"
	"os/exec"

	"go.bug.st/serial"
)

// Capabilities reports which printer transports the runtime environment can
// actually reach.
type Capabilities struct {
	Wireless bool `json:"wireless"`
	Network  bool `json:"network"`
	Bridge   bool `json:"bridge"`
	OSDialog bool `json:"os_dialog"`
}

// Detector probes the environment. The probe funcs are swappable so tests
// and unusual deployments can override them.
type Detector struct {
	ListSerialPorts func() ([]string, error)
	Interfaces      func() ([]net.Interface, error)
	LookPath        func(file string) (string, error)
}

func NewDetector() *Detector {
	return &Detector{
		ListSerialPorts: serial.GetPortsList,
		Interfaces:      net.Interfaces,
		LookPath:        exec.LookPath,
	}
}

// Detect runs all probes once.
func (d *Detector) Detect() Capabilities {
	caps := Capabilities{}

	if ports, err := d.ListSerialPorts(); err == nil && len(ports) > 0 {
		caps.Wireless = true
	}

	if ifaces, err := d.Interfaces(); err == nil {
		for _, iface := range ifaces {
			if iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagLoopback == 0 {
				caps.Network = true
				break
			}
		}
	}
	// The bridge agent is reached over the same network stack.
	caps.Bridge = caps.Network

	for _, bin := range []string{"lp", "lpr"} {
		if _, err := d.LookPath(bin); err == nil {
			caps.OSDialog = true
			break
		}
	}

	return caps
}

// usable reports whether the capability for a transport kind is present.
func (c Capabilities) usable(kind TransportKind) bool {
	switch kind {
	case TransportWireless:
		return c.Wireless
	case TransportLAN:
		return c.Network
	case TransportBridge:
		return c.Bridge
	case TransportOSDialog:
		return c.OSDialog
	default:
		return false
	}
}
