package pod

import (
	"errors"
	"testing"
)

func TestRender_Module(t *testing.T) {
	// Arrange
	src := `package Foo::Bar;
use strict;

our $VERSION = '1.0';

=head1 NAME

Foo::Bar - An example B<module>

=head1 SYNOPSIS

    use Foo::Bar;
    my $x = Foo::Bar->new;

=head1 DESCRIPTION

Does I<things> with C<< $x->method >>
and L<the manual|perlpod>.

=cut

sub new { bless {}, shift }

=head2 Methods

=over 4

=item new

Constructor.

=back

=cut

1;
`

	// Act
	got, err := Render([]byte(src))

	// Assert
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	want := "NAME\n" +
		"Foo::Bar - An example module\n\n" +
		"SYNOPSIS\n" +
		"    use Foo::Bar;\n    my $x = Foo::Bar->new;\n\n" +
		"DESCRIPTION\n" +
		"Does things with $x->method\nand the manual.\n\n" +
		"Methods\n" +
		"new\n\n" +
		"Constructor.\n\n"
	if got != want {
		t.Errorf("Render() =\n%q\nwant:\n%q", got, want)
	}
}

func TestRender_NoPod(t *testing.T) {
	_, err := Render([]byte("package Foo;\n# =head1 not pod\n1;\n"))
	if !errors.Is(err, ErrNoPod) {
		t.Errorf("Render() error = %v, want ErrNoPod", err)
	}
}

func TestRender_SkipsBeginBlocks(t *testing.T) {
	src := "=head1 NAME\n\nFoo - bar\n\n=begin html\n\n<p>hidden</p>\n\n=end html\n\n=for comment skipped\n\nShown.\n"

	got, err := Render([]byte(src))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	want := "NAME\nFoo - bar\n\nShown.\n\n"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestStrip(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"B<bold> and I<italic>", "bold and italic"},
		{"C<< $a->b >>", "$a->b"},
		{"C<<< a >> b >>>", "a >> b"},
		{"E<lt>tagE<gt>", "<tag>"},
		{"caf E<0xe9>", "caf é"},
		{"L<Moose>", "Moose"},
		{"L<text|Some::Module>", "text"},
		{"L<perlfunc/open>", `"open" in perlfunc`},
		{"L</SYNOPSIS>", `"SYNOPSIS"`},
		{"L<https://metacpan.org>", "https://metacpan.org"},
		{"B<nested I<codes>>", "nested codes"},
		{"X<index>Z<>text", "text"},
		{"unterminated B<code", "unterminated B<code"},
		{"a < b > c", "a < b > c"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Strip(tt.in); got != tt.want {
				t.Errorf("Strip(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	// Latin-1 bytes without an =encoding directive
	latin1 := []byte("=head1 NAME\n\nCaf\xe9 - coffee\n")
	if got := Decode(latin1); got != "=head1 NAME\n\nCafé - coffee\n" {
		t.Errorf("Decode(latin1) = %q", got)
	}

	// Explicit encoding directive
	explicit := []byte("=encoding iso-8859-1\n\n=head1 NAME\n\nF\xfc\n")
	if got := Decode(explicit); got != "=encoding iso-8859-1\n\n=head1 NAME\n\nFü\n" {
		t.Errorf("Decode(explicit) = %q", got)
	}

	utf := []byte("=encoding utf8\n\nCafé\n")
	if got := Decode(utf); got != string(utf) {
		t.Errorf("Decode(utf8) = %q", got)
	}
}
