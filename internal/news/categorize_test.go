package news

import "testing"

func TestCategorize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text string
		want string
	}{
		{text: "Construction crane crash injures two", want: TagConstruction},
		{text: "Hospital settles malpractice suit after car accident", want: TagMedicalMalpractice},
		{text: "Defective airbag recall widens", want: TagProductLiability},
		{text: "Employee hurt on the job", want: TagWorkplace},
		{text: "Multi-vehicle COLLISION on I-80", want: TagCrash},
		{text: "City council approves budget", want: TagGeneral},
		{text: "", want: TagGeneral},
	}

	for _, tc := range cases {
		if got := Categorize(tc.text); got != tc.want {
			t.Fatalf("Categorize(%q): got %q want %q", tc.text, got, tc.want)
		}
	}
}
