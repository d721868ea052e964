package makefilepl

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frederic-klein/cpan2spec/internal/dist"
)

func TestParse_Literal(t *testing.T) {
	// Arrange
	src := `use strict;
use warnings;
use ExtUtils::MakeMaker;

# WriteMakefile(PREREQ_PM => { 'Commented::Out' => 1 });

WriteMakefile(
    NAME          => 'Foo::Bar',
    AUTHOR        => q{Jane Doe <jane@example.com>},
    VERSION_FROM  => 'lib/Foo/Bar.pm',
    ABSTRACT_FROM => "lib/Foo/Bar.pm",
    LICENSE       => 'perl',
    MIN_PERL_VERSION => 5.008001,
    EXE_FILES     => [ 'bin/foo' ],
    PREREQ_PM     => {
        'Carp'          => 0,
        "List::Util"    => '1.33',
        Scalar::Util    => 1.10,
        'Try::Tiny',       0.22,
    },
    BUILD_REQUIRES => {
        'Test::More' => '0.88',
    },
    TEST_REQUIRES => { 'Test::Deep' => 0 },
    CONFIGURE_REQUIRES => { 'ExtUtils::MakeMaker' => '6.64' },
    ($] >= 5.005 ? (ABSTRACT => 'x') : ()),
    dist  => { COMPRESS => 'gzip -9f', SUFFIX => 'gz', },
    clean => { FILES => 'Foo-Bar-*' },
);
`

	// Act
	res, err := Parse(context.Background(), []byte(src))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, dist.Deps{
		"Carp":         "0",
		"List::Util":   "1.33",
		"Scalar::Util": "1.10",
		"Try::Tiny":    "0.22",
	}, res.Deps["PREREQ_PM"])
	assert.Equal(t, dist.Deps{"Test::More": "0.88"}, res.Deps["BUILD_REQUIRES"])
	assert.Equal(t, dist.Deps{"Test::Deep": "0"}, res.Deps["TEST_REQUIRES"])
	assert.Equal(t, dist.Deps{"ExtUtils::MakeMaker": "6.64"}, res.Deps["CONFIGURE_REQUIRES"])
	assert.True(t, res.ExeFiles)
	assert.Equal(t, "5.008001", res.MinPerl)
	assert.Equal(t, "perl", res.License)
	assert.Empty(t, res.Rejected)
	assert.Len(t, res.All(), 7)
}

func TestParse_HashVariable(t *testing.T) {
	// Layout written by Dist::Zilla
	src := `use ExtUtils::MakeMaker 6.30;

my %WriteMakefileArgs = (
  "ABSTRACT" => "Example",
  "EXE_FILES" => [],
  "NAME" => "Foo::Bar",
  "PREREQ_PM" => {
    "Moo" => "2.000",
    "strict" => 0
  },
  "TEST_REQUIRES" => {
    "Test::More" => "0.96"
  },
);

my %FallbackPrereqs = (
  "Moo" => "2.000",
  "Test::More" => "0.96",
);

unless ( eval { ExtUtils::MakeMaker->VERSION(6.63_03) } ) {
  delete $WriteMakefileArgs{TEST_REQUIRES};
  $WriteMakefileArgs{PREREQ_PM} = \%FallbackPrereqs;
}

delete $WriteMakefileArgs{CONFIGURE_REQUIRES}
  unless eval { ExtUtils::MakeMaker->VERSION(6.52) };

WriteMakefile(%WriteMakefileArgs);
`

	res, err := Parse(context.Background(), []byte(src))

	require.NoError(t, err)
	assert.Equal(t, dist.Deps{"Moo": "2.000", "strict": "0"}, res.Deps["PREREQ_PM"])
	assert.Equal(t, dist.Deps{"Test::More": "0.96"}, res.Deps["TEST_REQUIRES"])
	assert.False(t, res.ExeFiles)
}

func TestParse_RejectsComputedValues(t *testing.T) {
	src := `my %deps = compute();
my $v = '1.0';
WriteMakefile(
    NAME => 'Foo',
    PREREQ_PM => \%deps,
    BUILD_REQUIRES => { 'Foo::Dep' => $v },
    TEST_REQUIRES => { 'Test::More' => '0.' . '98' },
    CONFIGURE_REQUIRES => { 'ExtUtils::MakeMaker' => 0 },
);
`

	res, err := Parse(context.Background(), []byte(src))

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"PREREQ_PM", "BUILD_REQUIRES", "TEST_REQUIRES"}, res.Rejected)
	assert.Equal(t, dist.Deps{"ExtUtils::MakeMaker": "0"}, res.All())
}

func TestParse_SkipsPerlSyntax(t *testing.T) {
	src := `use ExtUtils::MakeMaker;
my $os = $^O;
if ($os =~ /win(32|64)/i) { die "OS unsupported\n" }
my $msg = <<"EOT";
WriteMakefile( PREREQ_PM => { 'Heredoc::Trap' => 1 } );
EOT
my $x = 10 / 2; my $re = qr{ ( \{ ) }x;
s/foo/bar/g for @ARGV;
my @files = glob('bin/*');

=pod

WriteMakefile( PREREQ_PM => { 'Pod::Trap' => 1 } );

=cut

WriteMakefile(
    NAME      => 'Foo',
    EXE_FILES => [ @files ],
    PREREQ_PM => { 'Real::Dep' => 'v1.2.3', y => 1 },
);

__END__
WriteMakefile( PREREQ_PM => { 'After::End' => 1, 'Many::More' => 2 } );
`

	res, err := Parse(context.Background(), []byte(src))

	require.NoError(t, err)
	assert.Equal(t, dist.Deps{"Real::Dep": "v1.2.3", "y": "1"}, res.Deps["PREREQ_PM"])
	// [ @files ] is a list holding a value that cannot be evaluated
	assert.True(t, res.ExeFiles)
}

func TestParse_WriteMakefile1(t *testing.T) {
	src := `sub WriteMakefile1 {
    my %params = @_;
    delete $params{META_MERGE} if $] < 5.008;
    WriteMakefile(%params);
}

WriteMakefile1(
    NAME => 'Foo',
    PREREQ_PM => { 'Bar' => 2 },
);
`

	res, err := Parse(context.Background(), []byte(src))

	require.NoError(t, err)
	assert.Equal(t, dist.Deps{"Bar": "2"}, res.All())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{
			name:    "no call",
			src:     "use Module::Build;\nModule::Build->new(module_name => 'Foo')->create_build_script;\n",
			wantErr: ErrNoWriteMakefile,
		},
		{
			name: "unterminated call",
			src:  "WriteMakefile( NAME => 'Foo', PREREQ_PM => {",
		},
		{
			name: "unterminated string",
			src:  "WriteMakefile( NAME => 'Foo );\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(context.Background(), []byte(tt.src))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
		})
	}
}

func TestParse_Bounded(t *testing.T) {
	big := "WriteMakefile(" + strings.Repeat("'a', ", 10_000) + ");\n"

	t.Run("token budget", func(t *testing.T) {
		_, err := ParseBudget(context.Background(), []byte(big), 1000)
		assert.ErrorIs(t, err, ErrTokenBudget)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-ctx.Done()

		_, err := Parse(ctx, []byte(big))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestLexer_Tokens(t *testing.T) {
	src := `q(a (b) c) qq{x\ty} qw/one two/ 'it\'s' "say \"hi\"" "$interp" 1_000 -> => $h{key}`

	l := newLexer([]byte(src))
	var got []token
	for {
		tok, err := l.next()
		require.NoError(t, err)
		if tok.kind == tokEOF {
			break
		}
		got = append(got, tok)
	}

	require.Len(t, got, 13)
	assert.Equal(t, token{kind: tokString, text: "a (b) c", line: 1}, got[0])
	assert.Equal(t, "x\ty", got[1].text)
	assert.Equal(t, []string{"one", "two"}, got[2].words)
	assert.Equal(t, "it's", got[3].text)
	assert.Equal(t, `say "hi"`, got[4].text)
	assert.Equal(t, tokInterp, got[5].kind)
	assert.Equal(t, token{kind: tokNumber, text: "1_000", line: 1}, got[6])
	assert.Equal(t, "->", got[7].text)
	assert.Equal(t, "=>", got[8].text)
	assert.Equal(t, token{kind: tokVar, text: "$h", line: 1}, got[9])
	assert.Equal(t, "{", got[10].text)
	assert.Equal(t, token{kind: tokWord, text: "key", line: 1}, got[11])
	assert.Equal(t, "}", got[12].text)
}
