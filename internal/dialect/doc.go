// Package dialect decides whether a document is a CloudFormation template.
//
// Detection is regex only and never parses the document: it runs on every
// open and save. Both YAML and JSON templates are recognised. A false negative
// means the document is silently skipped; a false positive costs one cfn-lint
// run that fails fast.
//
// Serverless Framework files share the Resources/Type shape with CloudFormation
// templates; a document carrying both a lower-case `resources:` and a
// `provider:` key is classified as Serverless and left alone.
package dialect
