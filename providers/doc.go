// Package providers binds channels to their provider strategy.
//
// The strategy is chosen once per channel from the stored discriminator.
// Graph backed channels live in providers/graph and 360dialog channels in
// providers/dialog.
package providers
