package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/dgrijalva/jwt-go"
	"github.com/go-chi/render"
	"golang.org/x/crypto/bcrypt"
)

var (
	JWT_LIFESPAN time.Duration = time.Hour
)

type ctxKey string

const jwtCtxKey ctxKey = "jwt"

//---
// Structs
//

// User is an operator allowed into the admin API. Users have nothing to do
// with the TCP control channel, which is open to anyone on the access point.
type User struct {
	ID       int    `storm:"increment"` // pk
	Email    string `storm:"unique"`
	Name     string
	Password string
	Admin    bool
}

// Sets the User.Password to the hashed value for the provided plain text
func (u *User) SetPassword(pass []byte) error {
	hash, err := bcrypt.GenerateFromPassword(pass, bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	return nil
}

// Compares User.Password with the provided plain text.
// Returns values directly as provided by the bcrypt library for downstream processing.
func (u *User) VerifyPassword(pass []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), pass)
}

//---
// Generic payloads
//---

type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (l *LoginPayload) Bind(r *http.Request) error {
	if l.Email == "" {
		return errors.New("email is required")
	}
	return nil
}

type JWTPayload struct {
	SignedToken string `json:"token"`
}

//---
// Helper functions
//

// Produce a standard format JWT token
func newJWT(sub string) (ts string, err error) {
	now := time.Now().UTC()
	claims := jwt.StandardClaims{
		Issuer:    ENV.DEVICE_ID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(JWT_LIFESPAN).Unix(),
		Subject:   sub,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString([]byte(ENV.JWT_SECRET))
}

func keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("unexpected signing method")
	}
	return []byte(ENV.JWT_SECRET), nil
}

//---
// Views
//---

// Login looks up a user, verifies password and returns response
func Login(w http.ResponseWriter, r *http.Request) {
	data := &LoginPayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	var user User
	if err := ENV.DB.One("Email", data.Email, &user); err != nil {
		if errors.Is(err, storm.ErrNotFound) {
			render.Render(w, r, ErrNotFound)
			return
		}
		render.Render(w, r, ErrRender(err))
		return
	}

	err := user.VerifyPassword([]byte(data.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			render.Render(w, r, ErrPermissionDenied(errors.New("Invalid password")))
			return
		}
		render.Render(w, r, ErrRender(err))
		return
	}

	tokenString, err := newJWT(user.Email)
	if err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}

	render.JSON(w, r, JWTPayload{tokenString})
}

// Provides a new token to the client
func JWTRefresh(w http.ResponseWriter, r *http.Request) {
	token, ok := r.Context().Value(jwtCtxKey).(*jwt.Token)
	if !ok {
		render.Render(w, r, ErrUnauthorized(JWTEmpty))
		return
	}
	claims := token.Claims.(*jwt.StandardClaims)

	tokenString, err := newJWT(claims.Subject)
	if err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}

	render.JSON(w, r, JWTPayload{tokenString})
}

//---
// Authentication middleware
//---

var (
	JWTEmpty = errors.New("Bearer token not provided")
)

// tokenFromRequest looks in the query string first, since browsers cannot set
// headers on a websocket upgrade, then the Authorization header, then a cookie.
func tokenFromRequest(r *http.Request) string {
	if tokenStr := r.URL.Query().Get("jwt"); tokenStr != "" {
		return tokenStr
	}

	bearer := r.Header.Get("Authorization")
	if len(bearer) > 7 && strings.ToUpper(bearer[0:6]) == "BEARER" {
		return bearer[7:]
	}

	if cookie, err := r.Cookie("jwt"); err == nil {
		return cookie.Value
	}
	return ""
}

func ValidateJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := tokenFromRequest(r)
		if tokenStr == "" {
			render.Render(w, r, ErrUnauthorized(JWTEmpty))
			return
		}

		token, err := jwt.ParseWithClaims(tokenStr, &jwt.StandardClaims{}, keyFunc)
		if err != nil {
			reason := errors.New("Invalid token")

			var jwterr *jwt.ValidationError
			if errors.As(err, &jwterr) && jwterr.Errors&jwt.ValidationErrorExpired != 0 {
				reason = errors.New("Token has expired")
			}

			render.Render(w, r, ErrUnauthorized(reason))
			return
		}

		if !token.Valid {
			render.Render(w, r, ErrUnauthorized(errors.New("Invalid token")))
			return
		}

		ctx := context.WithValue(r.Context(), jwtCtxKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// createUser stores a new user, replacing the password of an existing one.
func createUser(db storm.Node, email, password string, admin bool) (*User, error) {
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}

	user := &User{}
	err := db.One("Email", email, user)
	switch {
	case errors.Is(err, storm.ErrNotFound):
		user = &User{Email: email, Name: email}
	case err != nil:
		return nil, err
	}

	user.Admin = admin
	if err := user.SetPassword([]byte(password)); err != nil {
		return nil, err
	}
	return user, db.Save(user)
}
