package rpc

import (
	"context"
	"encoding/json"

	"github.com/tomasbasham/chrome-daemon/internal/chromeerr"
)

type sessionCreateParams struct {
	Headless     *bool  `json:"headless,omitempty"`
	UserProfile  bool   `json:"user_profile,omitempty"`
	ExtensionDir string `json:"extension_dir,omitempty"`
}

type sessionInfo struct {
	ID              string `json:"id"`
	Port            int    `json:"port"`
	Headless        bool   `json:"headless"`
	UsesUserProfile bool   `json:"uses_user_profile"`
}

func registerSessionMethods(m map[string]handlerFunc) {
	m["session.create"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		var p sessionCreateParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		headless := d.Cfg.Browser.Headless
		if p.Headless != nil {
			headless = *p.Headless
		}

		if p.UserProfile {
			sess, err := d.Pool.GetOrCreateUserProfile(ctx, headless, p.ExtensionDir)
			if err != nil {
				return nil, err
			}
			return sessionInfo{ID: sess.ID(), Port: sess.Port(), Headless: sess.Headless(), UsesUserProfile: true}, nil
		}

		sess, err := d.Pool.CreateEphemeral(ctx, headless, p.ExtensionDir)
		if err != nil {
			return nil, err
		}
		return sessionInfo{ID: sess.ID(), Port: sess.Port(), Headless: sess.Headless(), UsesUserProfile: false}, nil
	}

	m["session.list"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		return d.Pool.List(), nil
	}

	m["session.get"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		sess, _, err := resolveSession(d, params)
		if err != nil {
			return nil, err
		}
		return sessionInfo{ID: sess.ID(), Port: sess.Port(), Headless: sess.Headless(), UsesUserProfile: sess.UsesUserProfile()}, nil
	}

	m["session.destroy"] = func(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
		var p struct {
			SessionID string `json:"session_id"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if p.SessionID == "" {
			return nil, chromeerr.New(chromeerr.KindInvalidParams, "missing session_id")
		}
		if err := d.Pool.Destroy(p.SessionID); err != nil {
			return nil, err
		}
		return map[string]bool{"destroyed": true}, nil
	}
}
