/*
Package expr parses the branch expressions of condition nodes.

A condition node routes to the first branch whose expression holds. The
editor stores each expression as text; Parse checks it so that syntax
mistakes surface during validation instead of at run time.

# Syntax

	<or>      := <and> ('or' <and>)*
	<and>     := <unary> ('and' <unary>)*
	<unary>   := ('not' | '!') <unary> | <compare>
	<compare> := <primary> (<op> <primary>)?
	<primary> := '(' <or> ')' | <value>
	<op>      := '==' | '!=' | '<' | '>' | '<=' | '>=' | 'contains'
	<value>   := 'text' | "text" | number | true | false | null | identifier

Evaluation happens on the run server; this package only checks syntax and
reports the identifiers an expression reads.

# Usage

	e, err := expr.Parse("intent == 'refund' and amount > 100")
	if err != nil {
	    return err // *expr.SyntaxError
	}
	e.Vars() // [intent amount]
*/
package expr
