package fruit

import "go.uber.org/dig"

// In marks a struct as a parameter object. When a constructor passed to
// Provide (or AddMultibindingProvider) accepts a single struct parameter with
// embedded In, every exported field of that struct is resolved from the
// injector and populated before the constructor runs.
//
// Field tags refine resolution:
//   - `optional:"true"` - the field is left at its zero value when unbound
//   - `name:"n"`        - the field resolves the annotated type
//   - `group:"g"`       - the field (a slice) is filled from a multibinding group
//
// Example:
//
//	type ServiceParams struct {
//	    fruit.In
//
//	    Database *Database
//	    Logger   Logger         `optional:"true"`
//	    Cache    Cache          `name:"redis"`
//	    Handlers []http.Handler `group:"routes"`
//	}
//
//	func NewService(params ServiceParams) *Service { ... }
type In = dig.In

// Out marks a struct as a result object. When a constructor passed to Provide
// returns a struct with embedded Out, each exported field is registered as a
// separate binding. The constructor runs at most once per injector regardless
// of how many of its fields are injected.
//
// Field tags refine registration:
//   - `name:"n"`  - the field is bound under the annotated type
//   - `group:"g"` - the field is contributed to a multibinding group
//
// Example:
//
//	type Services struct {
//	    fruit.Out
//
//	    Users  *UserService
//	    Admin  *AdminService `name:"admin"`
//	    Routes http.Handler  `group:"routes"`
//	}
//
//	func NewServices(db *Database) Services { ... }
type Out = dig.Out
