// Package validate implements recipient address validation.
//
// Validation is the primary gate in front of any send operation: no message
// leaves the pipeline with a recipient set that fails these checks.
package validate
