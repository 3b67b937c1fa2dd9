package dialect

import "testing"

func TestIsTemplate(t *testing.T) {
	cases := []struct {
		name string
		text string
		want bool
	}{
		{
			name: "yaml format version",
			text: "AWSTemplateFormatVersion: '2010-09-09'\n",
			want: true,
		},
		{
			name: "json quoted format version",
			text: `{"AWSTemplateFormatVersion": "2010-09-09"}`,
			want: true,
		},
		{
			name: "format version any case",
			text: "awstemplateformatversion: 2010-09-09\n",
			want: true,
		},
		{
			name: "format version wins over serverless keys",
			text: "AWSTemplateFormatVersion: '2010-09-09'\nprovider:\n  name: aws\nresources:\n  Resources: {}\n",
			want: true,
		},
		{
			name: "yaml resources with aws type",
			text: "Resources:\n  Bucket:\n    Type: AWS::S3::Bucket\n",
			want: true,
		},
		{
			name: "yaml resources with quoted custom type",
			text: "Resources:\n  Thing:\n    Type: 'Custom::Thing'\n",
			want: true,
		},
		{
			name: "json resources with aws type",
			text: `{"Resources": {"Queue": {"Type": "AWS::SQS::Queue"}}}`,
			want: true,
		},
		{
			name: "serverless resources and provider",
			text: "service: demo\nprovider:\n  name: aws\nresources:\n  Resources:\n    Bucket:\n      Type: AWS::S3::Bucket\n",
			want: false,
		},
		{
			name: "provider alone keeps template in scope",
			text: "Resources:\n  Bucket:\n    Type: AWS::S3::Bucket\n    Properties:\n      provider: x\n",
			want: true,
		},
		{
			name: "resources without namespaced type",
			text: "Resources:\n  Bucket:\n    Type: Other::S3::Bucket\n",
			want: false,
		},
		{
			name: "type without resources",
			text: "Type: AWS::S3::Bucket\n",
			want: false,
		},
		{
			name: "plain yaml",
			text: "name: demo\nversion: 1\n",
			want: false,
		},
		{
			name: "empty",
			text: "",
			want: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTemplate(tc.text); got != tc.want {
				t.Fatalf("IsTemplate(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestClassifyKinds(t *testing.T) {
	serverless := "provider:\n  name: aws\nresources:\n  Resources:\n    B:\n      Type: AWS::S3::Bucket\n"
	if got := Classify(serverless).Kind; got != KindServerless {
		t.Fatalf("expected serverless, got %v", got)
	}
	if got := Classify("hello").Kind; got != KindUnknown {
		t.Fatalf("expected unknown, got %v", got)
	}
	c := Classify("Resources:\n  B:\n    Type: AWS::S3::Bucket\n")
	if c.Kind != KindCloudFormation || !c.InScope() {
		t.Fatalf("expected cloudformation, got %v", c.Kind)
	}
	if !c.Evidence.Has(SignalResources) || !c.Evidence.Has(SignalResourceType) {
		t.Fatalf("expected resources and type signals, got %+v", c.Evidence.Signals())
	}
	if c.Evidence.Has(SignalFormatVersion) {
		t.Fatal("format version signal must not be observed")
	}
}

func TestObserveOffsets(t *testing.T) {
	text := "# header\nAWSTemplateFormatVersion: '2010-09-09'\n"
	e := Observe(text)
	signals := e.Signals()
	if len(signals) != 1 {
		t.Fatalf("expected one signal, got %+v", signals)
	}
	if signals[0].ID != SignalFormatVersion || signals[0].Offset != len("# header\n") {
		t.Fatalf("unexpected signal: %+v", signals[0])
	}
	var nilEvidence *Evidence
	if nilEvidence.Has(SignalResources) || nilEvidence.Signals() != nil {
		t.Fatal("nil evidence must be empty")
	}
	if KindServerless.String() != "serverless" || KindUnknown.GoString() != "Kind(unknown)" {
		t.Fatal("unexpected kind strings")
	}
}
