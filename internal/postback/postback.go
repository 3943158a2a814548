// Package postback serves the requests the network makes to the host application: signed activity postbacks
// and ping-to-pull profile fetches authorized by an lftoken.
package postback

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/golivefyre/livefyre"
)

const (
	PostbackRoute = "/livefyre/postback"
	ProfilesRoute = "/livefyre/profiles"
)

// ErrNotFound is returned by a ProfileFunc for unknown users.
var ErrNotFound = errors.New("profile not found")

// Handler processes one verified activity.
type Handler func(ctx context.Context, activity *livefyre.Activity) error

// ProfileFunc returns the profile the network should store for a user id.
type ProfileFunc func(ctx context.Context, id string) (map[string]any, error)

type claimsKey struct{}

// ClaimsFromContext returns the claims of the lftoken validated by RequireToken.
func ClaimsFromContext(ctx context.Context) (livefyre.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(livefyre.Claims)
	return claims, ok
}

// Mount registers the postback receiver for site and, when profiles is not nil, the ping-to-pull endpoint
// {ProfilesRoute}/{id}. The domain's pull URL should then be set to that route with {{id}} in place of the id.
func Mount(r chi.Router, site *livefyre.Site, handle Handler, profiles ProfileFunc) {
	r.Post(PostbackRoute, Receive(site, handle))
	if profiles != nil {
		r.Route(ProfilesRoute, func(r chi.Router) {
			r.Use(RequireToken(site.Client()))
			r.Get("/{id}", Profile(profiles))
		})
	}
}

// Receive verifies the sig and sig_created form values against the site secret, then hands the activity in the
// data value to handle.
func Receive(site *livefyre.Site, handle Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "malformed form", http.StatusBadRequest)
			return
		}

		err := site.VerifySignature(r.Context(), r.Form.Get("sig"), r.Form.Get("sig_created"))
		if err != nil {
			log.Error().Err(err).Str("site", site.ID).Msg("rejected postback")
			http.Error(w, "", handleErr(err))
			return
		}

		dec := json.NewDecoder(strings.NewReader(r.Form.Get("data")))
		dec.UseNumber()
		var params map[string]any
		if err = dec.Decode(&params); err != nil || params == nil {
			http.Error(w, "malformed activity", http.StatusBadRequest)
			return
		}

		activity := livefyre.NewActivity(site.Client(), site.ID, params)
		log.Debug().Str("activity", activity.ID).Str("type", activity.Type()).Msg("received postback")
		if err = handle(r.Context(), activity); err != nil {
			log.Error().Err(err).Str("activity", activity.ID).Msg("postback handler failed")
			http.Error(w, "", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// RequireToken rejects requests whose lftoken parameter is not a valid session token for client's network.
func RequireToken(client *livefyre.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := client.ValidateSession(r.FormValue("lftoken"))
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("invalid lftoken")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte("Unauthenticated"))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

func Profile(profiles ProfileFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		profile, err := profiles(r.Context(), id)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				log.Error().Err(err).Str("user", id).Msg("profile lookup failed")
			}
			http.Error(w, "", handleErr(err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err = json.NewEncoder(w).Encode(profile); err != nil {
			log.Error().Err(err).Msg("unable to marshal profile")
		}
	}
}

func handleErr(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, livefyre.ErrInvalidSignature):
		return http.StatusForbidden
	case errors.Is(err, livefyre.ErrRemoteAPI):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
