// Package services contains the provider clients used behind a web session.
//
// # Spotify
//
// [SpotifyService] is a Web API client bound to one access token. It does not refresh tokens: the auth flow hands
// out a new client after refreshing. Non-2xx responses become [*APIError] carrying Spotify's error message.
//
// # Telegram
//
// [TelegramConn] is a live MTProto connection tied to one session file. [MTProtoDialer] opens them with gotd, and
// [TelegramConn.SignIn] reports [ErrTelegramPasswordNeeded] for accounts with two-step verification.
//
// # Timeouts
//
// [NewHTTPClient] builds the outbound client with the configured timeout. All calls also take a context.
package services
