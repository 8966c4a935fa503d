// Package billing normalizes subscription records into comparable amounts
// and projects their upcoming charges.
//
// Every function here is pure: the exchange rate (USD to KRW) and the
// current date are parameters, never read from the environment, so the same
// inputs always produce the same output. Amounts are expressed in KRW, the
// reference currency. Inputs are expected to be validated upstream with
// core.Subscription.Validate; behavior on invalid records is undefined.
package billing
