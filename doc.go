/*
Package soy compiles Closure Templates ("Soy") and renders them to plain text.

A Soy file declares a namespace and one or more templates.  Each template is
preceded by a soydoc comment declaring its parameters, and is addressed by its
fully-qualified name, e.g. "acme.account.overview".

Usage example

Typically an application has a directory containing the templates for all of
its output.  This code snippet parses a file of globals and all soy templates
within app/views, and provides back a Tofu instance that can be used to render
any declared template.  (Error checking is skipped.)

On startup:

  tofu, _ := soy.NewBundle().
      WatchFiles(mode == "dev").            // watch soy files, reload on changes (in dev)
      AddGlobalsFile("views/globals.txt").  // parse a file of globals
      AddTemplateDir("views").              // load *.soy in all sub-directories
      CompileToTofu()

To render a template:

  var obj = map[string]interface{}{
    "user":    user,
    "account": account,
  }
  tofu.Render(out, "acme.account.overview", obj)

Data may be provided as plain maps, slices, and primitives as above, or
prepared ahead of time with soy/data.New().

Advanced Usage

The soy package provides a friendly interface to its sub-packages.  Advanced
usages like automated template rewriting will be better served by using
e.g. soy/parse directly.  Message bundles for rendering translations are
provided by soy/soymsg implementations such as soymsg/pomsg.
*/
package soy
