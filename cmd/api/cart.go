package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"kicks/internal/delivery"
	"kicks/internal/domain/carts"
	"kicks/internal/money"
)

// openCart loads the cart of whoever is making the request.
func (app *application) openCart(ctx context.Context, r *http.Request) (*carts.Store, error) {
	s := shopperFrom(r)
	return carts.Open(ctx, app.store.CartBackend(s.userID, s.guestToken), app.logger)
}

type cartResponse struct {
	carts.View
	Speed        delivery.Speed `json:"speed"`
	DeliveryFee  money.Amount   `json:"delivery_fee"`
	Total        money.Amount   `json:"total"`
	TotalDisplay string         `json:"total_display"`
}

func (app *application) cartView(cart *carts.Store, speed delivery.Speed) cartResponse {
	view := cart.View(app.config.shop.currencyPrefix)
	fee := app.delivery.Fee(view.ItemCount, speed)
	total := view.Subtotal.Add(fee)

	return cartResponse{
		View:         view,
		Speed:        speed,
		DeliveryFee:  fee,
		Total:        total,
		TotalDisplay: money.Format(total, app.config.shop.currencyPrefix),
	}
}

// GET /v1/store/cart?speed=express
func (app *application) getCartHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	speed, err := delivery.ParseSpeed(r.URL.Query().Get("speed"))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	cart, err := app.openCart(ctx, r)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, app.cartView(cart, speed))
}

// maxUnitPrice bounds the captured price of one pair.
var maxUnitPrice = money.FromMajor(1_000_000)

type cartItemPayload struct {
	ProductKey       carts.ProductKey `json:"product_key" validate:"required"`
	Color            string           `json:"color" validate:"max=50"`
	Size             string           `json:"size" validate:"max=20"`
	Quantity         int              `json:"quantity" validate:"required,min=1,max=99"`
	UnitPriceDisplay string           `json:"unit_price_display" validate:"required,max=50"`
	Name             string           `json:"name" validate:"max=200"`
	Image            string           `json:"image" validate:"omitempty,url"`
}

// POST /v1/store/cart/items
func (app *application) addCartItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var in cartItemPayload
	if err := readJSON(w, r, &in); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := validate(in); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if price, err := money.ParseChecked(in.UnitPriceDisplay); err != nil || price <= 0 || price > maxUnitPrice {
		app.badRequestResponse(w, r, errors.New("unit_price_display must contain a price between 0.01 and "+maxUnitPrice.String()))
		return
	}

	cart, err := app.openCart(ctx, r)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	err = cart.AddToCart(ctx, carts.Line{
		ProductKey:       in.ProductKey,
		Variant:          carts.Variant{Color: in.Color, Size: in.Size},
		Quantity:         in.Quantity,
		UnitPriceDisplay: in.UnitPriceDisplay,
		Name:             in.Name,
		Image:            in.Image,
	})
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusCreated, app.cartView(cart, delivery.Standard))
}

type lineKeyPayload struct {
	ProductKey carts.ProductKey `json:"product_key" validate:"required"`
	Color      string           `json:"color"`
	Size       string           `json:"size"`
}

func (p lineKeyPayload) key() carts.LineKey {
	return carts.LineKey{ProductKey: p.ProductKey, Color: p.Color, Size: p.Size}
}

// PATCH /v1/store/cart/items
//
// Sets the quantity of a line (0 or less removes it) and/or moves it to
// another color and size.
func (app *application) updateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var in struct {
		lineKeyPayload
		Quantity *int           `json:"quantity" validate:"omitempty,max=99"`
		Variant  *carts.Variant `json:"variant"`
	}
	if err := readJSON(w, r, &in); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := validate(in); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if in.Quantity == nil && in.Variant == nil {
		app.badRequestResponse(w, r, errors.New("quantity or variant is required"))
		return
	}

	cart, err := app.openCart(ctx, r)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	key := in.key()
	if in.Quantity != nil {
		if err := cart.UpdateQuantity(ctx, key, *in.Quantity); err != nil {
			app.storeErrorResponse(w, r, err)
			return
		}
	}
	if in.Variant != nil && (in.Quantity == nil || *in.Quantity > 0) {
		if err := cart.UpdateLineVariant(ctx, key, *in.Variant); err != nil {
			app.storeErrorResponse(w, r, err)
			return
		}
	}

	app.jsonResponse(w, http.StatusOK, app.cartView(cart, delivery.Standard))
}

// DELETE /v1/store/cart/items
//
// Removes exactly one line, or every variant of the product when
// all_variants is set.
func (app *application) removeCartItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var in struct {
		lineKeyPayload
		AllVariants bool `json:"all_variants"`
	}
	if err := readJSON(w, r, &in); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := validate(in.lineKeyPayload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	cart, err := app.openCart(ctx, r)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	if in.AllVariants {
		err = cart.RemoveFromCart(ctx, in.ProductKey)
	} else {
		err = cart.RemoveLine(ctx, in.key())
	}
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, app.cartView(cart, delivery.Standard))
}

// DELETE /v1/store/cart
func (app *application) clearCartHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cart, err := app.openCart(ctx, r)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	if err := cart.ClearCart(ctx); err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, map[string]string{
		"message": "cart cleared",
	})
}
