/*
Package validate implements the pure acceptance rules used by the field catalog.

Every function is deterministic and free of I/O: free text goes in, a typed
value or an error comes out. Oracle-backed resolution lives in the extraction
package; this package only checks what the oracle returned.
*/
package validate
