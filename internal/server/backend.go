package server

import (
	"fmt"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/movi/internal/auth"
	"github.com/sakif/movi/internal/config"
	"github.com/sakif/movi/internal/handler"
	"github.com/sakif/movi/internal/model"
	"github.com/sakif/movi/internal/openlibrary"
	sqliteRepo "github.com/sakif/movi/internal/repository/sqlite"
	"github.com/sakif/movi/internal/service"
	"github.com/sakif/movi/internal/tmdb"
)

// NewBackend builds the core backend on db. The returned Server owns db
// and closes it on shutdown.
//
// DEPENDENCY CHAIN:
//
//	sqlite.DB (every repository interface)
//	  → services (auth, library, reviews, network, users, activity)
//	  → handlers
//	  → routes
//
// Every route except /auth/* sits behind RequireAuth. Reads are open to
// any signed-in user; writes check that the token's subject owns the
// data (see handler.requireSelf).
func NewBackend(cfg *config.Config, db *sqliteRepo.DB, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.Backend.JWTSecret, cfg.Backend.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("server: backend: %w", err)
	}

	s := newServer("backend", cfg.Backend.Port, cfg.Backend.CORSOrigins, logger)
	s.closers = append(s.closers, db)

	var catalog service.Catalog
	if cfg.Backend.CatalogEnabled {
		catalog = service.NewRemoteCatalog(
			tmdb.New(cfg.TMDB.BaseURL, cfg.TMDB.APIKey, cfg.TMDB.Timeout, s.metrics, logger),
			openlibrary.New(cfg.OpenLibrary.BaseURL, cfg.OpenLibrary.Timeout, s.metrics, logger),
		)
	}

	passwords := auth.NewPasswordService(cfg.Backend.BcryptCost)
	activity := service.NewActivityService(db, db, db, logger)
	library := service.NewLibraryService(db, db, activity, catalog, logger)
	reviews := service.NewReviewService(db, db, db, activity, catalog, logger)

	authH := handler.NewAuthHandler(service.NewAuthService(db, tokens, passwords, logger), logger)
	libraryH := handler.NewLibraryHandler(library, logger)
	reviewH := handler.NewReviewHandler(reviews, logger)
	networkH := handler.NewNetworkHandler(service.NewNetworkService(db, db, logger), logger)
	userH := handler.NewUserHandler(service.NewUserService(db, logger), activity, logger)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/login", authH.HandleLogin)
		r.Post("/register", authH.HandleRegister)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		// Movie lists add and remove on distinct verbs in the path.
		r.Get("/movies/user/{userID}", libraryH.HandleList(model.ListWatched))
		r.Post("/addwatchedmovie/user/{userID}/movie/{movieID}", libraryH.HandleAdd(model.ListWatched))
		r.Delete("/removewatchedmovie/user/{userID}/movie/{movieID}", libraryH.HandleRemove(model.ListWatched))

		r.Get("/watchlatermovies/user/{userID}", libraryH.HandleList(model.ListLater))
		r.Post("/addwatchlatermovie/user/{userID}/movie/{movieID}", libraryH.HandleAdd(model.ListLater))
		r.Delete("/removewatchlatermovie/user/{userID}/movie/{movieID}", libraryH.HandleRemove(model.ListLater))

		// Book lists share one path per list across verbs.
		r.Get("/read/user/{userID}", libraryH.HandleList(model.ListRead))
		r.Post("/read/user/{userID}/book/{bookID}", libraryH.HandleAdd(model.ListRead))
		r.Delete("/read/user/{userID}/book/{bookID}", libraryH.HandleRemove(model.ListRead))

		r.Get("/toberead/user/{userID}", libraryH.HandleList(model.ListToRead))
		r.Post("/toberead/user/{userID}/book/{bookID}", libraryH.HandleAdd(model.ListToRead))
		r.Delete("/toberead/user/{userID}/book/{bookID}", libraryH.HandleRemove(model.ListToRead))

		r.Post("/createmoviereview", reviewH.HandleCreate(model.KindMovie))
		r.Post("/createbookreview", reviewH.HandleCreate(model.KindBook))
		r.Get("/reviews/user/{userID}", reviewH.HandleList)
		r.Delete("/reviews/{kind}/{reviewID}", reviewH.HandleDelete)

		for _, side := range []model.Relationship{model.Following, model.Follower} {
			base := "/" + networkSegment(side) + "/user/{userID}"
			r.Get(base, networkH.HandleList(side))
			r.Post(base+"/usertoadd/{otherID}", networkH.HandleAdd(side))
			r.Delete(base+"/usertoremove/{otherID}", networkH.HandleRemove(side))
		}

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/searchUsers/{query}", userH.HandleSearch)
			r.Get("/activity", userH.HandleListActivity)
			r.Post("/activity", userH.HandleAppendActivity)
			r.Get("/activity/friends", userH.HandleFriendsActivity)
			r.Get("/profile", userH.HandleProfile)
			r.Post("/bio", userH.HandleUpdateBio)
		})
	})

	return s, nil
}

func networkSegment(side model.Relationship) string {
	if side == model.Follower {
		return "followers"
	}
	return "following"
}
