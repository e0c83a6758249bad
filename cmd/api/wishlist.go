package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"kicks/internal/domain/carts"

	"github.com/go-chi/chi/v5"
)

type wishlistResponse struct {
	Wishlist []carts.ProductKey `json:"wishlist"`
}

// GET /v1/store/wishlist
func (app *application) getWishlistHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cart, err := app.openCart(ctx, r)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, wishlistResponse{Wishlist: cart.Wishlist()})
}

// POST /v1/store/wishlist  {product_key}
func (app *application) addWishlistHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var in struct {
		ProductKey carts.ProductKey `json:"product_key" validate:"required"`
	}
	if err := readJSON(w, r, &in); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := validate(in); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	cart, err := app.openCart(ctx, r)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}
	if err := cart.AddToWishlist(ctx, in.ProductKey); err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, wishlistResponse{Wishlist: cart.Wishlist()})
}

// DELETE /v1/store/wishlist/{productKey}
func (app *application) removeWishlistHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	product := carts.ProductKey(strings.TrimSpace(chi.URLParam(r, "productKey")))
	if product == "" {
		app.badRequestResponse(w, r, errors.New("product key is required"))
		return
	}

	cart, err := app.openCart(ctx, r)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}
	if err := cart.RemoveFromWishlist(ctx, product); err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, wishlistResponse{Wishlist: cart.Wishlist()})
}
