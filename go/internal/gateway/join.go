package gateway

import (
	"encoding/base64"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"
)

// JoinInfo advertises the LAN URLs a phone or podium display should open,
// with QR codes pre-rendered so the operator can put them on the projector.
type JoinInfo struct {
	IP            string `json:"ip"`
	ControllerURL string `json:"controller_url"`
	DisplayURL    string `json:"display_url"`
	ControllerQR  string `json:"controller_qr"` // base64 PNG
	DisplayQR     string `json:"display_qr"`    // base64 PNG
}

// LocalIP finds the address this host is reachable at on the venue network.
// The UDP dial never sends a packet; it only asks the kernel which interface
// would route out.
func LocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "127.0.0.1"
	}
	return addr.IP.String()
}

// qrBase64 renders a URL into a base64 PNG. Rendering failures degrade to an
// empty string; the URL text is still shown.
func qrBase64(url string) string {
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("failed to render QR code")
		return ""
	}
	return base64.StdEncoding.EncodeToString(png)
}

// BuildJoinInfo assembles the join URLs and QR codes for the given port.
func BuildJoinInfo(port int) JoinInfo {
	ip := LocalIP()
	controllerURL := fmt.Sprintf("http://%s:%d/admin", ip, port)
	displayURL := fmt.Sprintf("http://%s:%d/display", ip, port)
	return JoinInfo{
		IP:            ip,
		ControllerURL: controllerURL,
		DisplayURL:    displayURL,
		ControllerQR:  qrBase64(controllerURL),
		DisplayQR:     qrBase64(displayURL),
	}
}
