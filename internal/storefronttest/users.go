package storefronttest

import (
	"net/http"
	"strings"
	"time"
)

type userResponse struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	Phone     *string `json:"phone"`
	Avatar    *string `json:"avatar,omitempty"`
	Status    int     `json:"status"`
	CreatedAt string  `json:"createdAt"`
}

func (u *user) response() userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Phone:     u.Phone,
		Avatar:    u.Avatar,
		Status:    1,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b.mu.Lock()
	id, ok := b.usernames[body.Username]
	var u *user
	if ok {
		u = b.users[id]
	}
	now := b.now()
	ttl := b.TokenTTL
	override := b.loginOverride
	b.mu.Unlock()

	if u == nil || !verifyPassword(u.PasswordHash, body.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if override != nil {
		writeSuccess(w, override)
		return
	}

	tok, err := b.issuer.mint(u.ID, u.Username, now, now.Add(ttl))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	writeSuccess(w, map[string]any{
		"token":     tok,
		"userInfo":  u.response(),
		"expiresIn": int64(ttl / time.Second),
	})
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string  `json:"username"`
		Password string  `json:"password"`
		Email    string  `json:"email"`
		Phone    *string `json:"phone"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Username) == "" || body.Password == "" || strings.TrimSpace(body.Email) == "" {
		writeError(w, http.StatusBadRequest, "username, password and email are required")
		return
	}
	hash, err := hashPassword(body.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.usernames[body.Username]; exists {
		writeError(w, http.StatusConflict, "Username already exists")
		return
	}
	id := b.addUserLocked(body.Username, body.Email, body.Phone, hash)
	writeSuccess(w, b.users[id].response())
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.revoked[authToken(r)] = struct{}{}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": http.StatusOK})
}

func (b *Backend) handleProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username *string `json:"username"`
		Email    *string `json:"email"`
		Phone    *string `json:"phone"`
		Avatar   *string `json:"avatar"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.users[authUserID(r)]
	if u == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if body.Username != nil && *body.Username != u.Username {
		if _, taken := b.usernames[*body.Username]; taken {
			writeError(w, http.StatusConflict, "Username already exists")
			return
		}
		delete(b.usernames, u.Username)
		u.Username = *body.Username
		b.usernames[u.Username] = u.ID
	}
	if body.Email != nil {
		u.Email = *body.Email
	}
	if body.Phone != nil {
		u.Phone = body.Phone
	}
	if body.Avatar != nil {
		u.Avatar = body.Avatar
	}
	writeSuccess(w, u.response())
}
