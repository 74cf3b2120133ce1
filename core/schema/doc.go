/*
Package schema converts EC2-style query parameters into typed arguments and
back.

Query APIs flatten nested data into dotted keys. Lists are addressed by a
1-based index and structures by field name, and the two alternate:

	SecurityGroup.1=web
	SecurityGroup.2=db
	BlockDeviceMapping.1.DeviceName=/dev/sda1
	BlockDeviceMapping.1.Ebs.VolumeSize=100

A Schema declares which keys an action accepts and how each value is
parsed. Extract turns a flat request into Arguments; Bundle turns values
back into a flat request.

# Declaring Parameters

Parameters are built in Go:

	s := schema.MustNew(
		schema.Unicode("ImageId"),
		schema.Integer("MinCount", schema.Min(1)),
		schema.List("SecurityGroup", schema.Unicode(""), schema.Optional()),
		schema.Bool("EbsOptimized", schema.Optional(), schema.Default(false)),
	)

or in YAML:

	action: RunInstances
	parameters:
	  - { name: ImageId, type: unicode }
	  - { name: MinCount, type: integer, min: 1 }
	  - name: SecurityGroup
	    type: list
	    optional: true
	    item: { type: unicode }

Dotted names such as "SecurityGroup.n" are legacy templates. Every other
segment stands for a list index, and New converts them into nested List
and Structure parameters.

# Types

  - unicode:   UTF-8 text; min/max bound its length
  - raw:       Text passed through untouched
  - integer:   Decimal integer, at least 0 unless no_min is set
  - boolean:   "true" or "false"
  - enum:      One of a set of tokens
  - date:      ISO 8601 timestamp, normalized to UTC
  - list:      Repeated item
  - structure: Named fields; only valid as a list item

# Errors

Bad input yields an *Error carrying one of the EC2 error codes
(MissingParameter, InvalidParameterValue, InvalidParameterCombination,
UnknownParameter). Inconsistent schemas and bad Bundle calls wrap
ErrSchema instead.
*/
package schema
