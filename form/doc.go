// Package form models the three kinds of modal form a server can present to
// a client and interprets the client's reply into a typed result.
//
// # Kinds
//
//	SimpleForm  "form"         a list of buttons; the reply is a button index
//	ModalForm   "modal"        two buttons; the reply is a boolean
//	CustomForm  "custom_form"  a list of elements; the reply is one value per element
//
// # Lifecycle
//
// A form is built with chained setters, then sealed when it is handed to the
// transport (State goes Building -> Sent). Setters called after sealing are
// ignored and the form reports ErrSealed from Seal and MarshalJSON. Handle
// resolves the form exactly once (Sent -> Resolved): it interprets the raw
// reply and dispatches to the submit or close callback.
//
// # Reply interpretation
//
// SimpleForm and ModalForm replies fail hard on anything unexpected: a wrong
// type, an index out of range or an index pointing at a visual entry yields a
// *ValidationError. CustomForm replies fail hard on a wrong type or arity,
// but an individual element's invalid value is replaced by the element's
// default (see element.Fallback) so one bad field does not void the
// submission. Result.Entry reports which values were substituted.
//
// Example:
//
//	f := form.NewCustomForm("Settings").
//	    AddElement(element.Toggle{Text: "PvP", Label: "pvp"}).
//	    AddElement(element.Dropdown{Text: "Difficulty", Options: []string{"easy", "hard"}, Default: element.Int(0), Label: "difficulty"}).
//	    OnSubmit(func(ctx context.Context, conn form.Conn, r *form.Result) {
//	        pvp := r.Bool("pvp")
//	        difficulty := r.Int("difficulty")
//	        _ = pvp; _ = difficulty
//	    })
package form
