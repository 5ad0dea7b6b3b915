// Package ftpsession dials glFTPd over FTPS with certificate trust delegated to the
// trust gate instead of the system roots.
package ftpsession

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jlaffaye/ftp"

	apperrors "github.com/allisson/glvault/internal/errors"
	profileDomain "github.com/allisson/glvault/internal/profile/domain"
	trustDomain "github.com/allisson/glvault/internal/trust/domain"
	trustUsecase "github.com/allisson/glvault/internal/trust/usecase"
)

// Options tunes Dial.
type Options struct {
	// Timeout bounds connecting and each control command. Zero uses the library default.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Session is a logged-in control connection. It is the Connection the trust gate
// tears down when the user rejects the server certificate.
type Session struct {
	profile profileDomain.ConnectionProfile
	logger  *slog.Logger
	cancel  context.CancelFunc

	mu           sync.Mutex
	conn         *ftp.ServerConn
	disconnected bool
	once         sync.Once
	closeErr     error
}

// Dial connects to profile and logs in. For TLS modes every handshake, including the
// data connections opened later, is verified by gate with the profile name as scope.
func Dial(
	ctx context.Context,
	profile profileDomain.ConnectionProfile,
	gate trustUsecase.TrustGate,
	opts Options,
) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("profile", profile.Name), slog.String("addr", profile.Address()))

	dialCtx, cancel := context.WithCancel(ctx)
	s := &Session{profile: profile, logger: logger, cancel: cancel}

	options := []ftp.DialOption{ftp.DialWithContext(dialCtx)}
	if opts.Timeout > 0 {
		options = append(options, ftp.DialWithTimeout(opts.Timeout))
	}
	if profile.SSLMode.UsesTLS() {
		tlsConfig := &tls.Config{
			ServerName: profile.Host,
			MinVersion: tls.VersionTLS12,
			// Chain validation is replaced by the trust gate.
			InsecureSkipVerify: true, //nolint:gosec
			VerifyConnection:   trustUsecase.VerifyConnection(dialCtx, gate, profile.Name, s),
		}
		if profile.SSLMode == profileDomain.SSLImplicit {
			options = append(options,
				ftp.DialWithTLS(tlsConfig),
				ftp.DialWithDialFunc(implicitDialFunc(dialCtx, opts.Timeout, tlsConfig)),
			)
		} else {
			options = append(options, ftp.DialWithExplicitTLS(tlsConfig))
		}
	}
	if !profile.PassiveMode {
		logger.Warn("active mode is not supported by the FTP client, using passive mode")
	}

	conn, err := ftp.Dial(profile.Address(), options...)
	if err != nil {
		cancel()
		if s.isDisconnected() {
			return nil, fmt.Errorf("dial %s: %w", profile.Address(), trustDomain.ErrCertificateRejected)
		}
		return nil, fmt.Errorf("dial %s: %w", profile.Address(), err)
	}

	s.mu.Lock()
	if s.disconnected {
		s.mu.Unlock()
		_ = conn.Quit()
		return nil, fmt.Errorf("dial %s: %w", profile.Address(), trustDomain.ErrCertificateRejected)
	}
	s.conn = conn
	s.mu.Unlock()

	if err := conn.Login(profile.Username, profile.Password); err != nil {
		_ = s.Disconnect()
		return nil, apperrors.Wrapf(err, "login to %s as %s", profile.Address(), profile.Username)
	}

	logger.Info("ftp session established", slog.String("ssl_mode", string(profile.SSLMode)))
	return s, nil
}

// implicitDialFunc opens TLS connections for implicit mode. timeout bounds only the TCP
// connect. The control handshake runs under ctx alone because VerifyConnection may wait
// on a human. Data connections handshake on first use.
func implicitDialFunc(
	ctx context.Context,
	timeout time.Duration,
	tlsConfig *tls.Config,
) func(network, address string) (net.Conn, error) {
	if timeout <= 0 {
		timeout = ftp.DefaultDialTimeout
	}
	dialer := &net.Dialer{Timeout: timeout}
	var controlDialed atomic.Bool

	return func(network, address string) (net.Conn, error) {
		raw, err := dialer.DialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}
		conn := tls.Client(raw, tlsConfig)
		if controlDialed.Swap(true) {
			return conn, nil
		}
		if err := conn.HandshakeContext(ctx); err != nil {
			_ = raw.Close()
			return nil, err
		}
		return conn, nil
	}
}

// Profile returns the profile the session was dialed with.
func (s *Session) Profile() profileDomain.ConnectionProfile {
	return s.profile
}

// Disconnect cancels a dial in progress or quits the established connection. Only the
// first call has an effect.
func (s *Session) Disconnect() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.disconnected = true
		conn := s.conn
		s.mu.Unlock()

		s.cancel()
		if conn != nil {
			s.closeErr = conn.Quit()
		}
		s.logger.Info("ftp session disconnected")
	})
	return s.closeErr
}

// Close is Disconnect.
func (s *Session) Close() error {
	return s.Disconnect()
}

// CurrentDir returns the working directory on the server.
func (s *Session) CurrentDir() (string, error) {
	conn, err := s.active()
	if err != nil {
		return "", err
	}
	return conn.CurrentDir()
}

// NoOp keeps the control connection alive.
func (s *Session) NoOp() error {
	conn, err := s.active()
	if err != nil {
		return err
	}
	return conn.NoOp()
}

// NameList returns the entry names of path.
func (s *Session) NameList(path string) ([]string, error) {
	conn, err := s.active()
	if err != nil {
		return nil, err
	}
	return conn.NameList(path)
}

func (s *Session) active() (*ftp.ServerConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disconnected || s.conn == nil {
		return nil, ErrDisconnected
	}
	return s.conn, nil
}

func (s *Session) isDisconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected
}

// ErrDisconnected is returned by commands issued after Disconnect.
var ErrDisconnected = apperrors.New("ftp session disconnected")
