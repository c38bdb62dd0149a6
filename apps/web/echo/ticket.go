package echoweb

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mothercare/core/session"
)

const (
	ticketCookie   = "mc_ticket"
	ticketLifetime = 365 * 24 * time.Hour
	ctxStoreKey    = "sessionStore"
)

var errInvalidTicket = errors.New("invalid browser ticket")

// ticketClaims identify a browser: Subject is its random id.
type ticketClaims struct {
	jwt.StandardClaims
}

// tickets signs the browser ticket cookie. The ticket addresses the browser's session namespace;
// it carries no credentials itself.
type tickets struct {
	key    []byte
	issuer string
	secure bool
}

func (t tickets) issue(browserID string) (string, error) {
	now := time.Now()
	claims := ticketClaims{
		StandardClaims: jwt.StandardClaims{
			Issuer:   t.issuer,
			Subject:  browserID,
			IssuedAt: now.Unix(),
		},
	}
	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", errors.Wrap(err, "signing ticket")
	}
	return ss, nil
}

// parse returns the browser id of a valid ticket.
func (t tickets) parse(raw string) (string, error) {
	claims := new(ticketClaims)
	token, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (interface{}, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, errInvalidTicket
		}
		return t.key, nil
	})
	if err != nil || !token.Valid {
		return "", errInvalidTicket
	}
	if claims.Issuer != t.issuer {
		return "", errInvalidTicket
	}
	if _, err = uuid.Parse(claims.Subject); err != nil {
		return "", errInvalidTicket
	}
	return claims.Subject, nil
}

func (t tickets) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     ticketCookie,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(ticketLifetime),
		MaxAge:   int(ticketLifetime / time.Second),
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ticketMiddleware attaches the session store of the requesting browser to the context.
// A missing or tampered ticket is replaced by a fresh one, hence an empty session.
func (s *Server) ticketMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var browserID string
		if c, err := ctx.Cookie(ticketCookie); err == nil {
			browserID, _ = s.tickets.parse(c.Value)
		}
		if browserID == "" {
			browserID = uuid.New().String()
			raw, err := s.tickets.issue(browserID)
			if err != nil {
				return err
			}
			ctx.SetCookie(s.tickets.cookie(raw))
		}

		store, err := session.NewStore(s.deps.Sessions, browserID)
		if err != nil {
			return errors.Wrap(err, "opening session store")
		}
		ctx.Set(ctxStoreKey, store)
		return next(ctx)
	}
}

func getContextStore(ctx echo.Context) (*session.Store, bool) {
	store, ok := ctx.Get(ctxStoreKey).(*session.Store)
	return store, ok
}
