package handlers

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/JRI98/incognitostickers/internal/identity"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// HTTPErrorHandler writes the message of the first *echo.HTTPError in the
// error chain, or a plain 500.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var httpError *echo.HTTPError
	if !errors.As(err, &httpError) {
		httpError = echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)).SetInternal(err)
	}

	var sendError error
	if c.Request().Method == http.MethodHead {
		sendError = c.NoContent(httpError.Code)
	} else {
		sendError = c.String(httpError.Code, fmt.Sprint(httpError.Message))
	}

	if sendError != nil {
		slog.Error("HTTPErrorHandler send error", slog.Any("sendError", sendError), slog.Any("httpError", httpError))
	}
}

// Authenticate checks the Authorization header, base64(public key ||
// signature of the request body), and stores the public key as "publicKey".
func Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authorizationHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		decoded, err := base64.StdEncoding.DecodeString(authorizationHeader)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}

		if len(decoded) != identity.PublicKeySize+identity.SignatureSize {
			return echo.NewHTTPError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}

		publicKey, err := identity.PublicKeyFromBytes(decoded[:identity.PublicKeySize])
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		bodySignature := decoded[identity.PublicKeySize:]

		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		}
		c.Request().Body.Close()
		c.Request().Body = io.NopCloser(bytes.NewReader(body))

		if !identity.Verify(publicKey, body, bodySignature) {
			return echo.NewHTTPError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}

		c.Set("publicKey", publicKey)

		return next(c)
	}
}

func (h *Handler) Routes(e *echo.Echo) {
	g := e.Group("/api", Authenticate)

	g.POST("/register", h.Register)
	g.GET("/messages", h.ReceiveMessages)
	g.POST("/messages", h.SendMessages)

	g.GET("/stickers", h.SearchStickers)
	g.GET("/stickers/packs/:id", h.StickerPack)
	g.GET("/stickers/saved", h.SavedStickersList)
	g.POST("/stickers/saved", h.AddSavedSticker)
	g.DELETE("/stickers/saved/:namespace/:id", h.RemoveSavedSticker)

	g.GET("/peers", h.SearchPeers)
}
