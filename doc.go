// Package tawk provides an AWK engine with two backends: a tree-walking
// interpreter over intermediate code and a compiler that produces portable
// TVM script artifacts.
//
// Programs go through a fixed pipeline. The parser builds a syntax tree,
// semantic analysis resolves names into a separate table, and the tree is
// lowered to a flat list of intermediate tuples. The tuples can be
// interpreted directly, written to a file and loaded later, or compiled by
// a registered code generator.
//
// # Quick Start
//
// For simple one-off execution:
//
//	output, err := tawk.Run(`{ print $1 }`, strings.NewReader("hello world"), nil)
//
// With configuration:
//
//	output, err := tawk.Run(program, input, &tawk.Config{
//	    FS: ":",
//	    Variables: map[string]string{"threshold": "100"},
//	})
//
// # Compiled Programs
//
// For repeated execution of the same program:
//
//	prog, err := tawk.Compile(`$1 > threshold { print $2 }`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, file := range files {
//	    output, err := prog.Run(file, &tawk.Config{
//	        Variables: map[string]string{"threshold": "100"},
//	    })
//	    // ...
//	}
//
// [Program.CompileTo] stores a compiled script as <OutputDir>/<ScriptName>.tvm
// and [Program.RunCompiled] runs it with the same settings the interpreter
// uses. Both backends produce the same output for the same program.
//
// # Extensions
//
// With [Config.EnableExtensions], [CompileSources] recognizes the bundled
// extension keywords (maps, references, stdin polling, sockets, blocking
// timers). Extensions are only available to the interpreter.
//
// # Error Handling
//
// Errors are returned as specific types for detailed handling:
//   - [ParseError]: lexical and syntax errors in AWK source
//   - [SemanticError]: resolution errors such as undefined functions
//   - [BuildError]: malformed intermediate code
//   - [CompileError]: the code generator rejected the program
//   - [RuntimeError]: errors during execution, with the source line
//   - [ExitError]: the program called exit with a non-zero status
//
// # Thread Safety
//
// Compiled [Program] objects are safe for concurrent use.
// Each call to [Program.Run] creates an independent execution context.
package tawk
