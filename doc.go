// Package allegro is a thin client for the Allegro REST API.
//
// An API value holds the application credentials and the current OAuth2
// token pair. Resource paths are built from it by chaining segments, and each
// path issues requests with the current access token:
//
//	api := allegro.New(allegro.Credentials{
//		ClientID:     clientID,
//		ClientSecret: clientSecret,
//		RedirectURI:  "https://example.com/callback",
//	})
//	fmt.Println(api.AuthorizationURI())
//	// After the user authorizes, Allegro redirects with ?code=...
//	resp, err := api.ExchangeCode(ctx, code)
//
//	orders := api.Child("order").Child("checkout-forms")
//	resp, err = orders.Get(ctx, url.Values{"status": {"READY_FOR_PROCESSING"}})
//	resp, err = api.Child("sale").ChildWithID("offers", "123").Get(ctx, nil, allegro.WithBeta())
//
// # Responses
//
// Every operation returns the raw *Response, whatever its HTTP status. The
// client never retries and never turns 4xx/5xx into errors; an error means
// the request could not be built or the transport failed (*TransportError).
//
// # Tokens
//
// ExchangeCode and RefreshTokens replace the held pair only when the token
// endpoint answers with both access_token and refresh_token. Nothing is
// refreshed automatically. API implements oauth2.TokenSource and returns a
// snapshot of the held tokens.
package allegro
