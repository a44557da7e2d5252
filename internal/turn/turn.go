package turn

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"net"

	"github.com/pion/turn/v3"
)

// Server wraps an embedded TURN/STUN relay. Ride calls are peer-to-peer;
// the relay only exists so riders behind symmetric NATs can still connect.
type Server struct {
	server   *turn.Server
	username string
	password string

	logger *slog.Logger
}

type Credentials struct {
	Username string
	Password string
}

func Initialize(port int, realm string, logger *slog.Logger) (*Server, error) {
	udpListener, err := net.ListenPacket("udp4", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to create UDP listener: %w", err)
	}

	creds := Credentials{
		Username: "bruinsplit",
		Password: generatePassword(),
	}

	relayIP := localIP(logger)
	logger.Info("TURN relay address selected", "ip", relayIP.String())

	s, err := turn.NewServer(turn.ServerConfig{
		Realm:       realm,
		AuthHandler: staticAuthHandler(creds.Username, creds.Password),
		PacketConnConfigs: []turn.PacketConnConfig{
			{
				PacketConn: udpListener,
				RelayAddressGenerator: &turn.RelayAddressGeneratorStatic{
					RelayAddress: relayIP,
					Address:      "0.0.0.0",
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create TURN server: %w", err)
	}

	logger.Info("TURN server initialized", "port", port, "realm", realm)

	return &Server{
		server:   s,
		username: creds.Username,
		password: creds.Password,
		logger:   logger,
	}, nil
}

func (s *Server) GetCredentials() Credentials {
	return Credentials{
		Username: s.username,
		Password: s.password,
	}
}

func (s *Server) Close() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

func staticAuthHandler(expectedUsername, expectedPassword string) turn.AuthHandler {
	return func(username string, realm string, srcAddr net.Addr) ([]byte, bool) {
		if username == expectedUsername {
			return turn.GenerateAuthKey(username, realm, expectedPassword), true
		}
		return nil, false
	}
}

func generatePassword() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}

// localIP determines the outbound interface address for the relay.
func localIP(logger *slog.Logger) net.IP {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		logger.Error("Failed to determine local IP", "error", err)
		return net.ParseIP("127.0.0.1")
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP
}
