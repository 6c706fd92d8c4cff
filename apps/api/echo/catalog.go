package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/ilmlab/core/progress"
	"github.com/trezcool/ilmlab/core/reaction"
)

type catalogApi struct {
	achievements *progress.Catalog
	reactions    *reaction.Catalog
}

func registerCatalogAPI(g *echo.Group, achievements *progress.Catalog, reactions *reaction.Catalog) {
	api := catalogApi{achievements: achievements, reactions: reactions}

	g.GET("/achievements", api.queryAchievements)
	g.GET("/reactions", api.lookupReaction)
}

func (api *catalogApi) queryAchievements(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.achievements.All())
}

func (api *catalogApi) lookupReaction(ctx echo.Context) error {
	elements, err := bindElements(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.reactions.Lookup(elements))
}
