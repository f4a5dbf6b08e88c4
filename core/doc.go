// Package core contains the channel domain contracts, entities, and the
// orchestration logic for provider dispatch, token lifecycle, app registration,
// and template sync. Provider and transport adapters depend on this package;
// core must not depend on them.
package core
