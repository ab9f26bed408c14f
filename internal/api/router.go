package api

import (
	"database/sql"
	"net/http"

	"github.com/gudangmitra/gudang/internal/chat"
	"github.com/gudangmitra/gudang/internal/lifecycle"
	"github.com/gudangmitra/gudang/internal/model"
	"github.com/gudangmitra/gudang/internal/store"
)

// Deps are the services the router wires into its handlers.
type Deps struct {
	DB                *sql.DB
	JWTSecret         string
	Requests          *lifecycle.Manager
	Chat              *chat.Client
	CORSOrigin        string
	ImageMaxDimension int
	LoginPerMinute    int
	ChatPerMinute     int
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	if d.Requests == nil {
		d.Requests = lifecycle.New(d.DB, store.TransitionOptions{})
	}
	if d.Chat == nil {
		d.Chat = chat.NewClient(chat.Config{})
	}

	authHandler := &AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret}
	usersHandler := &UsersHandler{DB: d.DB}
	itemsHandler := &ItemsHandler{DB: d.DB, ImageMaxDimension: d.ImageMaxDimension}
	categoriesHandler := &CategoriesHandler{DB: d.DB}
	requestsHandler := &RequestsHandler{DB: d.DB, Requests: d.Requests}
	notificationsHandler := &NotificationsHandler{DB: d.DB}
	chatHandler := &ChatHandler{DB: d.DB, Client: d.Chat}
	healthHandler := &HealthHandler{DB: d.DB}

	authMW := AuthMiddleware(d.JWTSecret, d.DB)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)
	loginLimit := RateLimit(d.LoginPerMinute)
	chatLimit := RateLimit(d.ChatPerMinute)

	// Public.
	mux.HandleFunc("GET /api/health", healthHandler.Health)
	mux.Handle("POST /api/auth/login", loginLimit(http.HandlerFunc(authHandler.Login)))

	// Authenticated routes.
	mux.Handle("GET /api/auth/me", authMW(http.HandlerFunc(authHandler.Me)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Items: read (all roles), write (manager+).
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("GET /api/items/template", authMW(http.HandlerFunc(itemsHandler.Template)))
	mux.Handle("POST /api/items", authMW(requireManager(http.HandlerFunc(itemsHandler.Create))))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("PUT /api/items/{id}", authMW(requireManager(http.HandlerFunc(itemsHandler.Update))))
	mux.Handle("DELETE /api/items/{id}", authMW(requireManager(http.HandlerFunc(itemsHandler.Delete))))
	mux.Handle("PUT /api/items/{id}/image", authMW(requireManager(http.HandlerFunc(itemsHandler.UploadImage))))
	mux.Handle("GET /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.GetImage)))

	// Categories: read (all roles), write (manager+).
	mux.Handle("GET /api/categories", authMW(http.HandlerFunc(categoriesHandler.List)))
	mux.Handle("POST /api/categories", authMW(requireManager(http.HandlerFunc(categoriesHandler.Create))))
	mux.Handle("GET /api/categories/{id}", authMW(http.HandlerFunc(categoriesHandler.Get)))
	mux.Handle("PUT /api/categories/{id}", authMW(requireManager(http.HandlerFunc(categoriesHandler.Update))))
	mux.Handle("DELETE /api/categories/{id}", authMW(requireManager(http.HandlerFunc(categoriesHandler.Delete))))

	// Requests: submit and read own (all roles), review (manager+), delete (admin).
	mux.Handle("GET /api/requests", authMW(http.HandlerFunc(requestsHandler.List)))
	mux.Handle("POST /api/requests", authMW(http.HandlerFunc(requestsHandler.Create)))
	mux.Handle("GET /api/requests/export", authMW(requireManager(http.HandlerFunc(requestsHandler.Export))))
	mux.Handle("GET /api/requests/user/{userId}", authMW(http.HandlerFunc(requestsHandler.ListByUser)))
	mux.Handle("GET /api/requests/{id}", authMW(http.HandlerFunc(requestsHandler.Get)))
	mux.Handle("PUT /api/requests/{id}/status", authMW(requireManager(http.HandlerFunc(requestsHandler.UpdateStatus))))
	mux.Handle("PATCH /api/requests/{id}/status", authMW(requireManager(http.HandlerFunc(requestsHandler.UpdateStatus))))
	mux.Handle("DELETE /api/requests/{id}", authMW(requireAdmin(http.HandlerFunc(requestsHandler.Delete))))

	// Notifications: own only; creating one is manager+.
	mux.Handle("GET /api/notifications", authMW(http.HandlerFunc(notificationsHandler.List)))
	mux.Handle("GET /api/notifications/unread-count", authMW(http.HandlerFunc(notificationsHandler.UnreadCount)))
	mux.Handle("PUT /api/notifications/read-all", authMW(http.HandlerFunc(notificationsHandler.MarkAllRead)))
	mux.Handle("PUT /api/notifications/{id}/read", authMW(http.HandlerFunc(notificationsHandler.MarkRead)))
	mux.Handle("DELETE /api/notifications/{id}", authMW(http.HandlerFunc(notificationsHandler.Delete)))
	mux.Handle("POST /api/notifications", authMW(requireManager(http.HandlerFunc(notificationsHandler.Create))))

	// Chat assistant.
	mux.Handle("POST /api/chat", authMW(chatLimit(http.HandlerFunc(chatHandler.Send))))
	mux.Handle("GET /api/chat/items-context", authMW(http.HandlerFunc(chatHandler.ItemsContext)))
	mux.Handle("GET /api/chat/sessions", authMW(http.HandlerFunc(chatHandler.Sessions)))
	mux.Handle("POST /api/chat/sessions", authMW(http.HandlerFunc(chatHandler.CreateSession)))
	mux.Handle("GET /api/chat/sessions/{id}", authMW(http.HandlerFunc(chatHandler.Session)))
	mux.Handle("DELETE /api/chat/sessions/{id}", authMW(http.HandlerFunc(chatHandler.DeleteSession)))

	return CORSMiddleware(d.CORSOrigin)(mux)
}
