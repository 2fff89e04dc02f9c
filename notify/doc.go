// Package notify tells a job's owner about its terminal state.
//
// A [Dispatcher] renders the user-facing message for a done or failed job
// and sends it through a [Channel]. Finished videos go out inline first;
// when inline delivery fails the owner still gets a message with the asset
// link. Failed jobs only ever show a generic message with a retry button;
// the provider's failure text stays in the error log.
package notify
